package broadcast

import (
	"io"

	"go.uber.org/zap"
)

// Stream is a single listener's read side of an Audio broadcast: the null
// frame first, then every chunk Pushed while attached, until the listener is
// terminated or the underlying broadcast is torn down.
type Stream struct {
	audio     *Audio
	record    *ListenerRecord
	sub       *subscriber
	nullFrame []byte

	sentNull bool
	pending  []byte
}

// Read implements io.Reader so a Stream can be copied straight into an HTTP
// response body with io.Copy. It first drains the embedded null frame, then
// blocks for the next broadcast chunk. Read returns io.EOF once the
// listener's shutdown signal fires.
func (s *Stream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if !s.sentNull {
			s.sentNull = true
			if len(s.nullFrame) > 0 {
				s.pending = s.nullFrame
				break
			}
		}

		select {
		case data, ok := <-s.sub.ch:
			if !ok {
				return 0, io.EOF
			}
			if lost := s.sub.lag.Swap(0); lost > 0 {
				s.audio.log.Warn("listener lagged, chunks skipped",
					zap.Uint64("listener_id", uint64(s.record.ID)),
					zap.Uint64("skipped", lost))
			}
			s.pending = data
		case <-s.record.shutdown:
			return 0, io.EOF
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	s.record.bytesSent.Add(uint64(n))
	return n, nil
}

// Lag returns how many chunks have been silently dropped for this listener
// and not yet reported, and resets the count; Read also logs and resets it
// when it next receives a chunk. A nonzero value means the client fell
// behind and should expect a discontinuity, not corruption. Drops happen at
// Push time to the newest chunks, so the chunks a lagging listener reads
// next are the older ones still buffered in its channel.
func (s *Stream) Lag() uint64 {
	return s.sub.lag.Swap(0)
}

// ListenerID returns the id assigned to this listener at Attach.
func (s *Stream) ListenerID() ListenerID {
	return s.record.ID
}

// Close detaches the stream from its broadcast. Safe to call on every exit
// path (normal EOF, handler panic recovery, or explicit termination); it is
// the cleanup guard from the original's CleanupGuard Drop impl.
func (s *Stream) Close() error {
	s.record.Terminate()
	s.audio.Detach(s.record.ID)
	return nil
}
