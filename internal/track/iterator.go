package track

import "math/rand/v2"

// Iterator produces an infinite sequence of tracks such that, within each
// cycle of length N (the number of tracks), every track appears exactly
// once. Cycles are independently shuffled using the caller-supplied PRNG.
//
// Grounded in the original's track_iterator.rs: maintain a queue, refill by
// shuffling a copy of the full track list whenever it runs dry, pop the
// front on every call.
type Iterator struct {
	tracks []Track
	queue  []Track
}

// NewIterator creates an Iterator over the given track list. The list is
// copied; later mutation of the caller's slice does not affect playback.
func NewIterator(tracks []Track) *Iterator {
	cp := make([]Track, len(tracks))
	copy(cp, tracks)
	return &Iterator{tracks: cp}
}

// Next returns the next track to play, reshuffling a fresh cycle with rng
// whenever the current cycle is exhausted.
func (it *Iterator) Next(rng *rand.Rand) Track {
	if len(it.queue) == 0 {
		it.queue = make([]Track, len(it.tracks))
		copy(it.queue, it.tracks)
		rng.Shuffle(len(it.queue), func(i, j int) {
			it.queue[i], it.queue[j] = it.queue[j], it.queue[i]
		})
	}

	next := it.queue[0]
	it.queue = it.queue[1:]
	return next
}
