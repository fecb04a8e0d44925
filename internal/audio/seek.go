package audio

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatSeekTime renders a millisecond offset in the HH:MM:SS.mmmmmm form
// ffmpeg's -ss flag expects, with hours omitted when zero and the fractional
// field padded to six digits (microsecond resolution, though we only ever
// have millisecond precision to offer).
func FormatSeekTime(ms int64) string {
	totalSeconds := ms / 1000
	remainderMs := ms % 1000

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	fractionalMicros := remainderMs * 1000

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, fractionalMicros)
	}
	return fmt.Sprintf("%02d:%02d.%06d", minutes, seconds, fractionalMicros)
}

// ParseSeekTime is the inverse of FormatSeekTime, recovering the original
// millisecond offset.
func ParseSeekTime(s string) (int64, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0, fmt.Errorf("seek time %q: missing fractional field", s)
	}
	clock, frac := s[:dot], s[dot+1:]

	fracMicros, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("seek time %q: invalid fractional field: %w", s, err)
	}

	parts := strings.Split(clock, ":")
	var hours, minutes, seconds int64
	switch len(parts) {
	case 2:
		minutes, err = strconv.ParseInt(parts[0], 10, 64)
		if err == nil {
			seconds, err = strconv.ParseInt(parts[1], 10, 64)
		}
	case 3:
		hours, err = strconv.ParseInt(parts[0], 10, 64)
		if err == nil {
			minutes, err = strconv.ParseInt(parts[1], 10, 64)
		}
		if err == nil {
			seconds, err = strconv.ParseInt(parts[2], 10, 64)
		}
	default:
		return 0, fmt.Errorf("seek time %q: unexpected clock field shape", s)
	}
	if err != nil {
		return 0, fmt.Errorf("seek time %q: %w", s, err)
	}

	totalMs := (hours*3600+minutes*60+seconds)*1000 + fracMicros/1000
	return totalMs, nil
}
