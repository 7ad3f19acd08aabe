package scene

// OriginalResult is the per-tile traversal verdict of §3.
type OriginalResult int

const (
	ResultNone OriginalResult = iota
	ResultCulled
	ResultRendered
	ResultRefined
)

func (r OriginalResult) String() string {
	switch r {
	case ResultCulled:
		return "Culled"
	case ResultRendered:
		return "Rendered"
	case ResultRefined:
		return "Refined"
	default:
		return "None"
	}
}

// SelectionState is the per-tile "last-selection record" of §3:
// (frameNumber, original-result, kicked?). Kicked may only be true if
// OriginalResult == Rendered; this invariant is enforced by SetKicked, not
// by construction, since the traversal sets OriginalResult first and kicks
// later in the same frame.
type SelectionState struct {
	FrameNumber    int64
	OriginalResult OriginalResult
	Kicked         bool
}

// ForFrame returns the state if it was recorded for exactly this frame,
// otherwise ResultNone — "reading by frame number older than the stored one
// returns None" (§3).
func (s SelectionState) ForFrame(frame int64) OriginalResult {
	if s.FrameNumber != frame {
		return ResultNone
	}
	return s.OriginalResult
}

// SetKicked marks the tile kicked for its current frame. Per §3, this is
// only meaningful (and only called by the traversal) when OriginalResult is
// already Rendered.
func (s *SelectionState) SetKicked() {
	if s.OriginalResult == ResultRendered {
		s.Kicked = true
	}
}

// Record stores a fresh selection outcome for frame, resetting Kicked.
func (s *SelectionState) Record(frame int64, result OriginalResult) {
	s.FrameNumber = frame
	s.OriginalResult = result
	s.Kicked = false
}
