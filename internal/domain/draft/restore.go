package draft

import "time"

// Outcome is what opening an edit surface decided to do with a stored draft
type Outcome string

const (
	OutcomeNoDraft          Outcome = "NO_DRAFT"
	OutcomeRestored         Outcome = "RESTORED"
	OutcomeDiscardedStale   Outcome = "DISCARDED_STALE"
	OutcomeDiscardedMissing Outcome = "DISCARDED_MISSING"
)

// Decide compares a stored draft with the server copy.
//
// A missing server document discards the draft. A server copy updated after
// the draft's baseline wins and the draft is dropped silently. Otherwise the
// draft holds local work made on top of the current server state and is
// restored. Drafts without a baseline belong to unsaved documents.
func Decide(snapshot *Snapshot, serverUpdatedAt time.Time, serverExists bool) Outcome {
	if snapshot == nil {
		return OutcomeNoDraft
	}
	if !serverExists {
		if snapshot.CapturedServerUpdatedAt == nil && snapshot.DocumentID == nil {
			return OutcomeRestored
		}
		return OutcomeDiscardedMissing
	}
	if snapshot.CapturedServerUpdatedAt == nil {
		return OutcomeDiscardedStale
	}
	if serverUpdatedAt.After(*snapshot.CapturedServerUpdatedAt) {
		return OutcomeDiscardedStale
	}
	return OutcomeRestored
}
