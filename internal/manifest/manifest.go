// Package manifest loads a station's manifest.json from disk, probes every
// referenced audio file with the prober, and enriches tracks with tags and a
// checksum recovered from the file itself.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/dhowden/tag"

	"github.com/lowpower-fm/broadcaster/internal/track"
)

// wireTrack and wireNarration mirror the manifest.json schema from the spec;
// they exist only to decouple the on-disk JSON shape from track.Track, which
// also carries probe-only fields that never round-trip through JSON.
type wireNarration struct {
	Source     string `json:"source"`
	Transcript string `json:"transcript"`
}

type wireTrack struct {
	Title           string          `json:"title"`
	Artist          string          `json:"artist"`
	AlbumArt        string          `json:"album_art"`
	Source          string          `json:"source"`
	NarrationBefore []wireNarration `json:"narration_before"`
	NarrationAfter  []wireNarration `json:"narration_after"`
}

type wireManifest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Seed        uint64      `json:"seed"`
	Tracks      []wireTrack `json:"tracks"`
}

// Load reads <baseDir>/manifest.json, probes every referenced file with
// the prober, and returns a fully-populated, validated Manifest. Any failure
// here is fatal to station startup, per the spec's error policy: the
// manifest is authoritative.
func Load(baseDir string) (*track.Manifest, error) {
	manifestPath := filepath.Join(baseDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", manifestPath, err)
	}

	var wire wireManifest
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", manifestPath, err)
	}

	out := &track.Manifest{
		Title:       wire.Title,
		Description: wire.Description,
		Seed:        wire.Seed,
		Tracks:      make([]track.Track, len(wire.Tracks)),
	}

	for i, wt := range wire.Tracks {
		absSource := filepath.Join(baseDir, wt.Source)

		info, err := Probe(absSource)
		if err != nil {
			return nil, fmt.Errorf("manifest: probing track %q: %w", wt.Title, err)
		}

		t := track.Track{
			Title:    wt.Title,
			Artist:   wt.Artist,
			AlbumArt: wt.AlbumArt,
			Source:   absSource,
			FileInfo: *info,
		}

		if sum, err := checksum(absSource); err == nil {
			t.Checksum = sum
		}
		enrichFromTags(&t, absSource)

		for _, n := range wt.NarrationBefore {
			t.NarrationBefore = append(t.NarrationBefore, resolveNarration(baseDir, n))
		}
		for _, n := range wt.NarrationAfter {
			t.NarrationAfter = append(t.NarrationAfter, resolveNarration(baseDir, n))
		}

		out.Tracks[i] = t
	}

	if err := out.Valid(); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	return out, nil
}

func resolveNarration(baseDir string, n wireNarration) track.Narration {
	absSource := filepath.Join(baseDir, n.Source)
	info, err := Probe(absSource)
	if err != nil {
		// Narrations are optional flavor; a broken narration file should not
		// fail the whole manifest load. Such a narration keeps only its
		// location, stays eligible for selection like any other, and the
		// decoder abandons its step if the file cannot be decoded.
		info = &track.FileInfo{Location: absSource}
	}
	return track.Narration{
		Source:     n.Source,
		Transcript: n.Transcript,
		FileInfo:   *info,
	}
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// enrichFromTags fills in Album/Genre/Year from the file's own tags when
// present; it never overrides what the manifest JSON already declared for
// Title/Artist.
func enrichFromTags(t *track.Track, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return
	}

	t.Tags.Album = m.Album()
	t.Tags.Genre = m.Genre()
	t.Tags.Year = m.Year()
}
