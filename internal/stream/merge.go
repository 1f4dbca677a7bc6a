package stream

import "github.com/umar/livesync/internal/models"

type Kind int

const (
	KindHistory Kind = iota
	KindLive
)

// Batch is one unit of inbound messages. History batches are chronological
// (oldest first) by the time they reach Merge.
type Batch struct {
	Kind     Kind
	Messages []models.Message
}

// Merge folds an inbound batch into the current list and returns the next
// list. existing is not modified.
//
// History replaces the list; entries of existing whose id is not part of the
// batch (live messages that raced the history reply) are kept after it, in
// their arrival order. Live messages are appended in arrival order; an id
// already present is dropped. No reordering by timestamp happens.
func Merge(existing []models.Message, in Batch) []models.Message {
	switch in.Kind {
	case KindHistory:
		seen := make(map[string]struct{}, len(in.Messages))
		next := make([]models.Message, 0, len(in.Messages)+len(existing))
		for _, m := range in.Messages {
			seen[m.ID] = struct{}{}
			next = append(next, m)
		}
		for _, m := range existing {
			if _, ok := seen[m.ID]; !ok {
				next = append(next, m)
			}
		}
		return next
	default:
		seen := make(map[string]struct{}, len(existing))
		for _, m := range existing {
			seen[m.ID] = struct{}{}
		}
		next := make([]models.Message, len(existing), len(existing)+len(in.Messages))
		copy(next, existing)
		for _, m := range in.Messages {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			next = append(next, m)
		}
		return next
	}
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
