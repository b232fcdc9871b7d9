package domain

// InboxItem is a queued link submission owned by the external queue store.
// Stores decode their records into it by configured field names.
type InboxItem struct {
	ID         string
	URL        string
	Title      string
	Processed  bool
	RetryCount int
	LastError  string
}

// ItemUpdate is the single write the coordinator issues for an item per run.
// An empty LastError clears the stored error.
type ItemUpdate struct {
	Processed  bool
	LastError  string
	RetryCount int
}

// ItemState enumerates the per-item pipeline milestones.
type ItemState string

const (
	StatePending         ItemState = "pending"
	StateExtracting      ItemState = "extracting"
	StateSummarizing     ItemState = "summarizing"
	StatePersisting      ItemState = "persisting"
	StateDone            ItemState = "done"
	StateFailedRetryable ItemState = "failed_retryable"
	StateFailedTerminal  ItemState = "failed_terminal"
)

// Terminal reports whether no further automatic attempt follows the state.
func (s ItemState) Terminal() bool {
	return s == StateDone || s == StateFailedTerminal
}
