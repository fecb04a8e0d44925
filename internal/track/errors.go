package track

import "errors"

var errEmptyManifest = errors.New("manifest has zero tracks")

// InvalidTrackError reports a track whose probed duration is zero, which the
// spec forbids: a track with zero duration is invalid.
type InvalidTrackError struct {
	Title string
}

func (e *InvalidTrackError) Error() string {
	return "track " + e.Title + " has zero or unknown duration"
}
