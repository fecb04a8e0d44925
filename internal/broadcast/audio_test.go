package broadcast

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readNBlocking(t *testing.T, s *Stream, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		m, err := s.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:m]...)
	}
	return out
}

// S6 — three listeners A, B, C attach to an Audio broadcast. Each first
// receives the null frame; A and C then receive all 100 one-byte chunks in
// order. An artificially-stalled listener (B) must observe lag without
// affecting A or C's delivery.
func TestAudio_LossyFanOutWithLaggingListener(t *testing.T) {
	nullFrame := []byte{0xAA}
	a := NewAudio("mp3_64", nullFrame, zap.NewNop())

	_, streamA := a.Attach()
	defer streamA.Close()
	_, streamB := a.Attach()
	defer streamB.Close()
	_, streamC := a.Attach()
	defer streamC.Close()

	// Drain the null frame from each before any chunk pushes begin.
	require.Equal(t, nullFrame, readNBlocking(t, streamA, 1))
	require.Equal(t, nullFrame, readNBlocking(t, streamB, 1))
	require.Equal(t, nullFrame, readNBlocking(t, streamC, 1))

	const n = 100
	for i := 0; i < n; i++ {
		a.Push([]byte{byte(i)})
		// B never reads during this loop, so its channel (capacity 24)
		// fills and later pushes are dropped for B only; A and C keep up
		// and receive every chunk in order.
		require.Equal(t, []byte{byte(i)}, readNBlocking(t, streamA, 1))
		require.Equal(t, []byte{byte(i)}, readNBlocking(t, streamC, 1))
	}

	require.Greater(t, streamB.Lag(), uint64(0), "a stalled listener should observe dropped chunks")

	// B must still be readable (just behind): the chunks buffered before its
	// channel filled are still there.
	drainedB := 0
	for {
		select {
		case <-streamB.sub.ch:
			drainedB++
		default:
			goto doneB
		}
	}
doneB:
	require.Greater(t, drainedB, 0)
}

// With no listeners attached, Push must never block and must not retain
// memory proportional to the number of chunks pushed.
func TestAudio_PushWithNoListenersIsBounded(t *testing.T) {
	a := NewAudio("mp3_64", nil, zap.NewNop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100000; i++ {
			a.Push([]byte{byte(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked with zero listeners attached")
	}
}

// A terminated listener's Stream.Read must return io.EOF.
func TestAudio_TerminateEndsStream(t *testing.T) {
	a := NewAudio("mp3_64", nil, zap.NewNop())
	record, stream := a.Attach()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := stream.Read(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	a.Terminate(record.ID)

	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("terminated stream did not return EOF")
	}
}
