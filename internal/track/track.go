// Package track holds the data model for a station's manifest: tracks,
// narrations, and the per-file probe results that back playback timing.
package track

// FileInfo carries the probed facts about an on-disk audio file.
type FileInfo struct {
	Location          string `json:"location"`
	SizeBytes         int64  `json:"sizeBytes"`
	AudioMilliseconds int64  `json:"audioMilliseconds"`
}

// Narration is an optional spoken-word clip played immediately before or
// after a track. The transcript is carried through but never drives
// playback decisions.
type Narration struct {
	Source     string `json:"source"`
	Transcript string `json:"transcript"`

	FileInfo FileInfo `json:"-"`
}

// Track is one playable item in a station's manifest.
type Track struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	AlbumArt  string `json:"album_art,omitempty"`
	Source    string `json:"source"`

	NarrationBefore []Narration `json:"narration_before,omitempty"`
	NarrationAfter  []Narration `json:"narration_after,omitempty"`

	FileInfo FileInfo `json:"-"`

	// Checksum and Tags are populated opportunistically by the manifest
	// loader from the source file itself (sha256 + ID3/FLAC/etc. tags),
	// supplementing whatever the manifest JSON already declared.
	Checksum string `json:"-"`
	Tags     Tags   `json:"-"`
}

// Tags holds metadata recovered directly from the audio file, used only to
// fill in blanks the manifest left empty.
type Tags struct {
	Album string
	Genre string
	Year  int
}

// Manifest is the immutable, fully-probed description of one station.
type Manifest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Seed        uint64  `json:"seed"`
	Tracks      []Track `json:"tracks"`
}

// Valid reports whether the manifest has at least one track and every track
// has a positive probed duration, per the spec's invariants.
func (m *Manifest) Valid() error {
	if len(m.Tracks) == 0 {
		return errEmptyManifest
	}
	for i := range m.Tracks {
		if m.Tracks[i].FileInfo.AudioMilliseconds <= 0 {
			return &InvalidTrackError{Title: m.Tracks[i].Title}
		}
	}
	return nil
}
