package quest

import (
	"sort"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
)

// UI payload types sent through Player.SendUIData.
const (
	PayloadQuestUpdate = "questUpdate"
	PayloadAddAlert    = "addEntityAlert"
	PayloadRemoveAlert = "removeEntityAlert"
)

// QuestUpdate is the full snapshot of one quest sent to the client.
type QuestUpdate struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Objectives  []ObjectiveView `json:"objectives"`
	Reward      Reward          `json:"reward"`
	State       QuestStatus     `json:"state"`
}

// ObjectiveView is an objective together with the player's progress.
type ObjectiveView struct {
	Objective
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

// AlertToggle shows or hides the alert marker on an NPC type.
type AlertToggle struct {
	Type      string `json:"type"`
	ClassName string `json:"className"`
}

// RecomputeAlerts diffs the NPC types that currently have visible dialogue
// for an active quest against the alerts already shown, and sends one add
// or remove toggle per change. Does nothing while the player is not spawned.
func (pql *PlayerQuestLog) RecomputeAlerts() {
	if !pql.player.Spawned() {
		return
	}

	want := make(map[string]bool)
	for _, id := range pql.order {
		if pql.states[id].Status != QuestStatusActive {
			continue
		}
		for _, ia := range pql.active[id] {
			if want[ia.NPC] {
				continue
			}
			if ia.visible(pql) {
				want[ia.NPC] = true
			}
		}
	}

	for _, npc := range sortedKeys(want) {
		if pql.alerts[npc] {
			continue
		}
		pql.alerts[npc] = true
		pql.player.SendUIData(AlertToggle{Type: PayloadAddAlert, ClassName: npc})
	}
	for _, npc := range sortedKeys(pql.alerts) {
		if want[npc] {
			continue
		}
		delete(pql.alerts, npc)
		pql.player.SendUIData(AlertToggle{Type: PayloadRemoveAlert, ClassName: npc})
	}
}

// ResetAlerts forgets which alerts were shown and recomputes them. Hosts
// call it when the player's in-world representation is (re)spawned.
func (pql *PlayerQuestLog) ResetAlerts() {
	pql.alerts = make(map[string]bool)
	pql.RecomputeAlerts()
}

// ShownAlerts returns the NPC types currently flagged, sorted
func (pql *PlayerQuestLog) ShownAlerts() []string {
	return sortedKeys(pql.alerts)
}

// Sweep drops cached interactions for quests that are no longer active.
// Returns the number of entries removed.
func (pql *PlayerQuestLog) Sweep() int {
	removed := 0
	for id := range pql.active {
		if !pql.IsQuestActive(id) {
			delete(pql.active, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("Swept quest interaction cache", "player", pql.player.ID(), "removed", removed)
	}
	return removed
}

// cachedQuests returns the quest IDs with cached interactions, sorted.
func (pql *PlayerQuestLog) cachedQuests() []string {
	ids := make([]string, 0, len(pql.active))
	for id := range pql.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sendQuestUpdate pushes the snapshot of one quest to the client.
func (pql *PlayerQuestLog) sendQuestUpdate(questID string) {
	qs, exists := pql.states[questID]
	if !exists {
		return
	}
	pql.player.SendUIData(buildQuestUpdate(qs))
}

func buildQuestUpdate(qs *QuestState) QuestUpdate {
	q := qs.quest
	objectives := make([]ObjectiveView, len(q.Objectives))
	for i, obj := range q.Objectives {
		progress := qs.Progress[obj.ID]
		objectives[i] = ObjectiveView{
			Objective: obj,
			Progress:  progress,
			Completed: progress >= obj.Target,
		}
	}
	return QuestUpdate{
		Type:        PayloadQuestUpdate,
		ID:          q.ID,
		Name:        q.Name,
		Description: q.Description,
		Objectives:  objectives,
		Reward:      q.Rewards,
		State:       qs.Status,
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
