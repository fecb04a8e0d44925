package audio

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
)

// frameBytes is the chunk size requested from the transcoder's stdout: up to
// one second of PCM per read, matching the original's
// FFMPEG_STDOUT_BUFFER_SIZE.
const frameBytes = bytesPerSecond

// Source wraps an external transcoder child process that decodes one media
// file to raw PCM on its stdout. It is a lazy, finite sequence of Packets;
// dropping it (Close) kills the child so it never orphans.
type Source struct {
	cmd    *exec.Cmd
	reader *bufio.Reader
	log    *zap.Logger
}

// OpenSource spawns the transcoder against path, optionally seeking to
// offsetMs first. Standard error is discarded, per spec.md §4.3.
func OpenSource(path string, offsetMs int64, log *zap.Logger) (*Source, error) {
	args := []string{"-i", path}
	if offsetMs > 0 {
		args = append(args, "-ss", FormatSeekTime(offsetMs))
	}
	args = append(args, "-f", "s16le", "-ac", fmt.Sprint(Channels), "-ar", fmt.Sprint(SampleRate), "-")

	cmd := exec.Command("transcoder", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio source: stdout pipe: %w", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio source: starting transcoder for %s: %w", path, err)
	}

	return &Source{
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, frameBytes),
		log:    log,
	}, nil
}

// Next reads up to one second of PCM from the child. It returns io.EOF when
// the child's stdout reaches end of stream (end of sequence, per spec).
// A read error is fatal to this step only: the caller abandons it and the
// state engine advances, it is not propagated as a station-level failure.
func (s *Source) Next() (Packet, error) {
	buf := make([]byte, frameBytes)
	n, err := io.ReadFull(s.reader, buf)
	if n == 0 {
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			s.log.Warn("pcm read error", zap.Error(err))
			return Packet{}, err
		}
		return Packet{}, io.EOF
	}
	// A short final read before EOF still yields a valid partial packet.
	return Packet{
		AudioLengthSeconds: BufferLengthSeconds(n),
		Buffer:             buf[:n],
	}, nil
}

// Close kills the child transcoder process, avoiding orphaned processes.
func (s *Source) Close() error {
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil {
		return err
	}
	_ = s.cmd.Wait()
	return nil
}
