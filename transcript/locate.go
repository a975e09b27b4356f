package transcript

import "time"

// Locate returns the index of the segment to highlight at pos, or -1 when
// segs is empty.
//
//   - A segment with Start <= pos < End wins; the first such segment if
//     several overlap.
//   - Before the first segment starts, the first segment is reported.
//   - In a gap, the closest preceding segment that has already ended stays
//     highlighted until the next one starts. Past the end of the transcript
//     this is the last segment.
//
// segs is read only for the duration of the call.
func Locate(pos time.Duration, segs []Segment) int {
	if len(segs) == 0 {
		return -1
	}

	for i, s := range segs {
		if s.Contains(pos) {
			return i
		}
	}

	if pos < segs[0].Start {
		return 0
	}

	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].End <= pos {
			return i
		}
	}
	return -1
}
