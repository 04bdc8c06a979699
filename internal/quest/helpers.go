package quest

import "github.com/jeremymiller99/lumberjacksim-sub000/internal/events"

// Visibility predicates for dialogue interactions.

// Always makes an interaction visible to everyone
func Always(*PlayerQuestLog) bool { return true }

// WhenNotStarted is visible until the quest is started, once its
// prerequisites are completed.
func WhenNotStarted(q *Quest) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return !pql.HasStartedQuest(q.ID) && pql.prereqsMet(q)
	}
}

// WhenActive is visible while the quest is in progress
func WhenActive(questID string) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return pql.IsQuestActive(questID)
	}
}

// WhenObjectivePending is visible while the quest is active and the
// objective has not reached its target.
func WhenObjectivePending(questID, objectiveID string) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return pql.IsQuestActive(questID) && !pql.IsObjectiveCompleted(questID, objectiveID)
	}
}

// WhenObjectiveDone is visible once the objective reached its target
func WhenObjectiveDone(questID, objectiveID string) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return pql.IsObjectiveCompleted(questID, objectiveID)
	}
}

// WhenReadyToComplete is visible while every objective is met but the
// quest has not been turned in.
func WhenReadyToComplete(questID string) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return pql.CanCompleteQuest(questID)
	}
}

// WhenCompleted is visible after the quest was completed
func WhenCompleted(questID string) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return pql.IsQuestCompleted(questID)
	}
}

// All is visible when every predicate is
func All(preds ...VisibleFunc) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		for _, p := range preds {
			if !p(pql) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate
func Not(pred VisibleFunc) VisibleFunc {
	return func(pql *PlayerQuestLog) bool {
		return !pred(pql)
	}
}

// Option builders used by quest content.

// StartQuestOption starts q when selected
func StartQuestOption(text string, q *Quest) *DialogueOption {
	return &DialogueOption{
		Text:     text,
		Dismiss:  true,
		OnSelect: func(pql *PlayerQuestLog) { pql.StartQuest(q) },
	}
}

// CompleteQuestOption turns in the quest when selected
func CompleteQuestOption(text, questID string) *DialogueOption {
	return &DialogueOption{
		Text:     text,
		Dismiss:  true,
		OnSelect: func(pql *PlayerQuestLog) { pql.CompleteQuest(questID) },
	}
}

// ProgressOption advances an objective when selected
func ProgressOption(text, questID, objectiveID string, amount int) *DialogueOption {
	return &DialogueOption{
		Text:     text,
		OnSelect: func(pql *PlayerQuestLog) { pql.AdjustObjectiveProgress(questID, objectiveID, amount) },
	}
}

// TradeOption runs a Transact when selected and calls then on success
func TradeOption(text string, take, give []ItemStack, currency int, then func(pql *PlayerQuestLog)) *DialogueOption {
	return &DialogueOption{
		Text: text,
		OnSelect: func(pql *PlayerQuestLog) {
			if Transact(pql.Player(), take, give, currency) && then != nil {
				then(pql)
			}
		},
	}
}

// ExitOption closes the dialogue without changing anything
func ExitOption(text string) *DialogueOption {
	return &DialogueOption{Text: text, Dismiss: true, Exit: true}
}

// Setup hook builders.

// TrackEvent returns a setup hook that advances an objective whenever the
// player's bus publishes a matching event. An empty target matches any.
// Events with a negative quantity are ignored.
func TrackEvent(kind, target, questID, objectiveID string) SetupFunc {
	return func(pql *PlayerQuestLog) func() {
		return pql.Events().Subscribe(kind, func(e events.Event) {
			if target != "" && e.Target != target {
				return
			}
			if e.Count() < 0 {
				return
			}
			pql.AdjustObjectiveProgress(questID, objectiveID, e.Count())
		})
	}
}

// CombineSetup runs several setup hooks and returns one cleanup that
// releases them all in reverse order.
func CombineSetup(hooks ...SetupFunc) SetupFunc {
	return func(pql *PlayerQuestLog) func() {
		handles := make([]*CleanupHandle, 0, len(hooks))
		for _, hook := range hooks {
			handles = append(handles, NewCleanupHandle(hook(pql)))
		}
		return func() {
			for i := len(handles) - 1; i >= 0; i-- {
				handles[i].Release()
			}
		}
	}
}
