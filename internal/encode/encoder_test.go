package encode

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/broadcast"
)

// installFakeTranscoder puts an executable named "transcoder" on PATH for
// the duration of the test, standing in for the real ffmpeg-compatible
// binary. It simply copies stdin to stdout, which is enough to exercise
// Encoder's pipe wiring without depending on a real encoder being present
// in the test environment.
func installFakeTranscoder(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\nexec cat\n"
	path := filepath.Join(dir, "transcoder")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	oldPath := os.Getenv("PATH")
	require.NoError(t, os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath))
	t.Cleanup(func() { _ = os.Setenv("PATH", oldPath) })
}

func TestEncoder_PushPCMReachesAudioBroadcast(t *testing.T) {
	installFakeTranscoder(t)

	out := broadcast.NewAudio("mp3_64", nil, zap.NewNop())
	_, stream := out.Attach()
	defer stream.Close()

	enc, err := NewEncoder(ProfileMP3_64, out, zap.NewNop())
	require.NoError(t, err)
	defer enc.Close()

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, enc.PushPCM(payload))

	buf := make([]byte, len(payload))
	done := make(chan error, 1)
	go func() {
		n := 0
		for n < len(buf) {
			m, rerr := stream.Read(buf[n:])
			if rerr != nil {
				done <- rerr
				return
			}
			n += m
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Equal(t, payload, buf)
	case <-time.After(2 * time.Second):
		t.Fatal("encoder did not relay pushed PCM through the fake transcoder in time")
	}
}

func TestEncoder_CloseKillsChildWithoutError(t *testing.T) {
	installFakeTranscoder(t)

	out := broadcast.NewAudio("mp3_128", nil, zap.NewNop())
	enc, err := NewEncoder(ProfileMP3_128, out, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, enc.Close())
}
