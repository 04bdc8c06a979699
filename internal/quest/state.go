package quest

import "maps"

// QuestStatus represents the lifecycle state of a started quest
type QuestStatus string

const (
	QuestStatusActive    QuestStatus = "active"    // Quest in progress
	QuestStatusCompleted QuestStatus = "completed" // Reward granted, terminal
)

// IsValid returns true for the statuses a saved record may carry
func (s QuestStatus) IsValid() bool {
	return s == QuestStatusActive || s == QuestStatusCompleted
}

// QuestState tracks one player's progress on one quest.
type QuestState struct {
	QuestID  string
	Status   QuestStatus
	Progress map[string]int // objectiveID -> progress

	quest   *Quest
	cleanup *CleanupHandle
}

// newQuestState creates an active state with every objective at zero.
func newQuestState(q *Quest) *QuestState {
	progress := make(map[string]int, len(q.Objectives))
	for _, obj := range q.Objectives {
		progress[obj.ID] = 0
	}
	return &QuestState{
		QuestID:  q.ID,
		Status:   QuestStatusActive,
		Progress: progress,
		quest:    q,
	}
}

// Quest returns the definition the state belongs to
func (qs *QuestState) Quest() *Quest {
	return qs.quest
}

// objectivesComplete reports whether every objective has reached its target.
func (qs *QuestState) objectivesComplete() bool {
	for _, obj := range qs.quest.Objectives {
		if qs.Progress[obj.ID] < obj.Target {
			return false
		}
	}
	return true
}

// snapshot returns a copy detached from the log.
func (qs *QuestState) snapshot() QuestState {
	return QuestState{
		QuestID:  qs.QuestID,
		Status:   qs.Status,
		Progress: maps.Clone(qs.Progress),
		quest:    qs.quest,
	}
}

// CleanupHandle owns the cleanup action returned by a quest's setup hook.
// Release runs it at most once.
type CleanupHandle struct {
	fn func()
}

// NewCleanupHandle wraps fn. A nil fn yields a handle whose Release is a no-op.
func NewCleanupHandle(fn func()) *CleanupHandle {
	return &CleanupHandle{fn: fn}
}

// Release runs the cleanup action if it has not run yet.
// Returns true if the action ran.
func (h *CleanupHandle) Release() bool {
	if h == nil || h.fn == nil {
		return false
	}
	fn := h.fn
	h.fn = nil
	fn()
	return true
}

// Pending returns true if Release has an action left to run
func (h *CleanupHandle) Pending() bool {
	return h != nil && h.fn != nil
}
