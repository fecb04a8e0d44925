// Package encode runs the per-codec transcoder child process that turns
// raw PCM into compressed audio bytes for one Audio Broadcast (C5).
package encode

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/audio"
	"github.com/lowpower-fm/broadcaster/internal/broadcast"
)

// Profile names one output codec's bitrate target.
type Profile struct {
	// Name identifies the profile in routes and logs, e.g. "mp3_64".
	Name string
	// BitrateKbps is the target constant bitrate.
	BitrateKbps int
}

var (
	// ProfileMP3_64 is the low-bandwidth MP3 profile.
	ProfileMP3_64 = Profile{Name: "mp3_64", BitrateKbps: 64}
	// ProfileMP3_128 is the high-fidelity MP3 profile.
	ProfileMP3_128 = Profile{Name: "mp3_128", BitrateKbps: 128}
)

const readChunkBytes = 8192

// Encoder spawns one transcoder child per codec, feeds it raw PCM on
// stdin, and pushes every chunk it writes back on stdout into an Audio
// broadcast. One Encoder exists per profile, per station (C5, a singleton
// per station per spec.md §4.5).
type Encoder struct {
	profile Profile
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	out     *broadcast.Audio
	log     *zap.Logger
}

// NewEncoder spawns the transcoder for profile and starts the background
// reader goroutine that fans its output into out.
func NewEncoder(profile Profile, out *broadcast.Audio, log *zap.Logger) (*Encoder, error) {
	args := []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "-",
		"-b:a", strconv.Itoa(profile.BitrateKbps) + "k",
		"-f", "mp3",
		"-flush_packets", "1",
		"-write_xing", "0",
		"-id3v2_version", "0",
		"-",
	}

	cmd := exec.Command("transcoder", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder %s: stdin pipe: %w", profile.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder %s: stdout pipe: %w", profile.Name, err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("encoder %s: starting transcoder: %w", profile.Name, err)
	}

	e := &Encoder{profile: profile, cmd: cmd, stdin: stdin, out: out, log: log}
	go e.readLoop(stdout)
	return e, nil
}

// readLoop copies the transcoder's compressed output into the station's
// Audio broadcast, 8KiB at a time. A station's encoder is expected to run
// for the station's entire lifetime; stdout reaching EOF means the child
// exited and the station's audio for this profile is over.
func (e *Encoder) readLoop(stdout io.Reader) {
	r := bufio.NewReaderSize(stdout, readChunkBytes)
	buf := make([]byte, readChunkBytes)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			e.out.Push(chunk)
		}
		if err != nil {
			if err != io.EOF {
				e.log.Error("encoder stdout read failed", zap.String("profile", e.profile.Name), zap.Error(err))
			} else {
				e.log.Warn("encoder stdout closed, profile stopped", zap.String("profile", e.profile.Name))
			}
			return
		}
	}
}

// PushPCM writes a raw PCM packet straight to the transcoder's stdin pipe.
// cmd.StdinPipe is unbuffered on the Go side, so every write reaches the
// child immediately, matching the original's deliberate bypass of stdin
// buffering for real-time audio.
func (e *Encoder) PushPCM(buf []byte) error {
	if _, err := e.stdin.Write(buf); err != nil {
		return fmt.Errorf("encoder %s: write: %w", e.profile.Name, err)
	}
	return nil
}

// Close kills the transcoder child process.
func (e *Encoder) Close() error {
	if e.cmd.Process == nil {
		return nil
	}
	if err := e.cmd.Process.Kill(); err != nil {
		return err
	}
	_ = e.cmd.Wait()
	return nil
}
