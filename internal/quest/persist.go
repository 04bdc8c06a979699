package quest

import (
	"encoding/json"
	"fmt"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
)

// SaveData is the persisted form of a quest log.
type SaveData struct {
	Quests []SavedQuest `json:"quests"`
}

// SavedQuest is the persisted form of one quest state.
type SavedQuest struct {
	QuestID           string         `json:"questId"`
	State             QuestStatus    `json:"state"`
	ObjectiveProgress map[string]int `json:"objectiveProgress"`
}

// Snapshot returns the persistable view of the log, in start order
func (pql *PlayerQuestLog) Snapshot() SaveData {
	data := SaveData{Quests: make([]SavedQuest, 0, len(pql.order))}
	for _, id := range pql.order {
		qs := pql.states[id].snapshot()
		data.Quests = append(data.Quests, SavedQuest{
			QuestID:           qs.QuestID,
			State:             qs.Status,
			ObjectiveProgress: qs.Progress,
		})
	}
	return data
}

// ToJSON serializes the quest log for storage
func (pql *PlayerQuestLog) ToJSON() ([]byte, error) {
	return json.Marshal(pql.Snapshot())
}

// ParseSaveData decodes persisted quest log data
func ParseSaveData(data []byte) (SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return SaveData{}, fmt.Errorf("failed to parse quest log: %w", err)
	}
	return sd, nil
}

// Restore loads persisted quest states into the log. Records for quests
// that no longer exist, records with an unknown state, and quest IDs the
// log already holds are skipped. Each restored quest's setup hook runs
// again so its progress tracking is re-armed.
func (pql *PlayerQuestLog) Restore(data []byte) error {
	sd, err := ParseSaveData(data)
	if err != nil {
		return err
	}

	restored := 0
	for _, rec := range sd.Quests {
		if _, exists := pql.states[rec.QuestID]; exists {
			continue
		}
		q, ok := pql.registry.GetQuest(rec.QuestID)
		if !ok {
			logger.Info("Skipping saved progress for retired quest", "player", pql.player.ID(), "quest", rec.QuestID)
			continue
		}
		if !rec.State.IsValid() {
			logger.Warning("Skipping saved quest with unknown state", "player", pql.player.ID(), "quest", rec.QuestID, "state", rec.State)
			continue
		}

		qs := newQuestState(q)
		qs.Status = rec.State
		for objectiveID, progress := range rec.ObjectiveProgress {
			qs.Progress[objectiveID] = progress
		}

		pql.states[q.ID] = qs
		pql.order = append(pql.order, q.ID)
		if qs.Status == QuestStatusActive {
			pql.active[q.ID] = q.Interactions
		}

		// Completed quests are re-armed too; their listeners can no longer
		// change anything because progress only moves on active quests.
		pql.arm(qs)
		restored++
	}

	logger.Debug("Restored quest log", "player", pql.player.ID(), "quests", restored, "records", len(sd.Quests))
	return nil
}
