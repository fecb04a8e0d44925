package manifest

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lowpower-fm/broadcaster/internal/track"
)

// Probe invokes the external prober to recover a file's duration and
// combines it with the file's on-disk size into a track.FileInfo. A
// non-zero prober exit is an error, per spec.md §6.
func Probe(path string) (*track.FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("probe: stat %s: %w", path, err)
	}

	cmd := exec.Command("prober",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe: running prober on %s: %w", path, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return nil, fmt.Errorf("probe: parsing prober duration for %s: %w", path, err)
	}

	return &track.FileInfo{
		Location:          path,
		SizeBytes:         stat.Size(),
		AudioMilliseconds: int64(seconds*1000 + 0.5),
	}, nil
}
