package scene

import "fmt"

// LoadState is the tile content state machine of §3:
//
//	Unloaded -> ContentLoading -> ContentLoaded -> Done   (success)
//	any non-Done state -> Failed (terminal) | FailedTemporarily (retry)
//	FailedTemporarily -> Unloaded                          (after token refresh)
//	Unloading is transient, used only during eviction.
type LoadState int

const (
	Unloaded LoadState = iota
	ContentLoading
	ContentLoaded
	Done
	Failed
	FailedTemporarily
	Unloading
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case ContentLoading:
		return "ContentLoading"
	case ContentLoaded:
		return "ContentLoaded"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	case FailedTemporarily:
		return "FailedTemporarily"
	case Unloading:
		return "Unloading"
	default:
		return "Unknown"
	}
}

// Actor names the domain allowed to request a given transition, enforced by
// CanTransition below per §3: "only the traversal may request Unloaded->Loading;
// only worker threads perform parsing; only the main thread may transition
// into Done, Failed, or Unloaded."
type Actor int

const (
	ActorTraversal Actor = iota
	ActorWorker
	ActorMain
)

// CanTransition reports whether actor is allowed to move a tile from `from`
// to `to`. It encodes the state-machine guarantees of §3 and §4.2; callers
// that violate it have a bug, not a recoverable runtime condition, so this
// is a pure predicate rather than an error-returning API — the caller
// decides whether to panic or log.
func CanTransition(actor Actor, from, to LoadState) bool {
	switch to {
	case ContentLoading:
		return actor == ActorTraversal && from == Unloaded
	case ContentLoaded:
		return actor == ActorWorker && from == ContentLoading
	case Done:
		return actor == ActorMain && from == ContentLoaded
	case Failed:
		return actor == ActorMain
	case FailedTemporarily:
		return actor == ActorMain
	case Unloaded:
		return actor == ActorMain && (from == FailedTemporarily || from == Unloading)
	case Unloading:
		return actor == ActorMain
	default:
		return false
	}
}

// ErrIllegalTransition is returned by strict call sites that want to surface
// a state-machine violation instead of silently ignoring it.
type ErrIllegalTransition struct {
	Actor    Actor
	From, To LoadState
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("actor %d may not transition tile from %s to %s", e.Actor, e.From, e.To)
}
