package quest

import (
	"sort"
	"time"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/events"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
)

// Default debounce windows.
const (
	DefaultResyncWindow = 50 * time.Millisecond
	DefaultSaveDelay    = 500 * time.Millisecond
)

// saveKey is the single debouncer key used for persistence writes.
const saveKey = "save"

// Options configures a PlayerQuestLog.
type Options struct {
	Scheduler    Scheduler     // Required; delivers debounced callbacks on the owner's goroutine
	ResyncWindow time.Duration // Quiet period before a quest's UI resync
	SaveDelay    time.Duration // Quiet period before a persistence write
}

func (o Options) withDefaults() Options {
	if o.ResyncWindow <= 0 {
		o.ResyncWindow = DefaultResyncWindow
	}
	if o.SaveDelay <= 0 {
		o.SaveDelay = DefaultSaveDelay
	}
	return o
}

// PlayerQuestLog manages all quests for a player. It is owned by a single
// execution context and is not safe for concurrent use.
type PlayerQuestLog struct {
	player   Player
	registry *Registry

	states map[string]*QuestState // questID -> state
	order  []string               // start order

	// Interactions of active quests, keyed by quest ID. Entries are evicted
	// on completion and by Sweep.
	active map[string][]*DialogueInteraction

	alerts map[string]bool // NPC types currently flagged for this player

	bus    *events.Bus
	resync *debouncer
	saves  *debouncer
	closed bool
}

// NewPlayerQuestLog creates the quest log for a player and restores any
// previously persisted progress. It panics if opts.Scheduler is nil.
func NewPlayerQuestLog(p Player, registry *Registry, opts Options) *PlayerQuestLog {
	if opts.Scheduler == nil {
		panic("quest: NewPlayerQuestLog requires a Scheduler")
	}
	opts = opts.withDefaults()

	pql := &PlayerQuestLog{
		player:   p,
		registry: registry,
		states:   make(map[string]*QuestState),
		active:   make(map[string][]*DialogueInteraction),
		alerts:   make(map[string]bool),
		bus:      events.NewBus(),
	}
	pql.resync = newDebouncer(opts.Scheduler, opts.ResyncWindow, pql.sendQuestUpdate)
	pql.saves = newDebouncer(opts.Scheduler, opts.SaveDelay, func(string) { pql.persist() })

	if data, ok := p.LoadPersisted(); ok && len(data) > 0 {
		if err := pql.Restore(data); err != nil {
			logger.Warning("Discarding unreadable quest log", "player", p.ID(), "error", err)
		}
	}
	return pql
}

// Player returns the player this log belongs to
func (pql *PlayerQuestLog) Player() Player {
	return pql.player
}

// Registry returns the registry the log resolves quests against
func (pql *PlayerQuestLog) Registry() *Registry {
	return pql.registry
}

// Events returns the bus setup hooks subscribe to for progress tracking
func (pql *PlayerQuestLog) Events() *events.Bus {
	return pql.bus
}

// StartQuest begins tracking a quest. Returns false if the quest was already
// started (active or completed) or its prerequisites are not met.
func (pql *PlayerQuestLog) StartQuest(q *Quest) bool {
	if q == nil || pql.closed {
		return false
	}
	if _, exists := pql.states[q.ID]; exists {
		return false
	}
	if registered, ok := pql.registry.GetQuest(q.ID); !ok || registered != q {
		logger.Warning("Refusing to start unregistered quest", "player", pql.player.ID(), "quest", q.ID)
		return false
	}
	if !pql.prereqsMet(q) {
		return false
	}

	qs := newQuestState(q)
	pql.states[q.ID] = qs
	pql.order = append(pql.order, q.ID)
	pql.active[q.ID] = q.Interactions
	pql.arm(qs)

	logger.Debug("Quest started", "player", pql.player.ID(), "quest", q.ID)
	pql.player.Notify("Quest started: "+q.Name, NotifyInfo)

	pql.resync.touch(q.ID)
	pql.saves.touch(saveKey)
	pql.RecomputeAlerts()
	return true
}

// StartQuestByID looks the quest up in the registry and starts it
func (pql *PlayerQuestLog) StartQuestByID(questID string) bool {
	q, ok := pql.registry.GetQuest(questID)
	if !ok {
		return false
	}
	return pql.StartQuest(q)
}

// arm runs the quest's setup hook and keeps its cleanup handle.
func (pql *PlayerQuestLog) arm(qs *QuestState) {
	if qs.quest.Setup == nil {
		return
	}
	qs.cleanup = NewCleanupHandle(qs.quest.Setup(pql))
}

func (pql *PlayerQuestLog) prereqsMet(q *Quest) bool {
	for _, id := range q.Prereqs {
		if !pql.IsQuestCompleted(id) {
			return false
		}
	}
	return true
}

// AdjustObjectiveProgress adds delta to an objective of an active quest.
// Returns false if the quest is not active, the objective is unknown, or
// the objective already reached its target. Progress is never clamped.
func (pql *PlayerQuestLog) AdjustObjectiveProgress(questID, objectiveID string, delta int) bool {
	if pql.closed {
		return false
	}
	qs, exists := pql.states[questID]
	if !exists || qs.Status != QuestStatusActive {
		return false
	}
	obj, ok := qs.quest.Objective(objectiveID)
	if !ok {
		return false
	}

	current := qs.Progress[objectiveID]
	if current >= obj.Target {
		return false
	}

	qs.Progress[objectiveID] = current + delta
	if qs.Progress[objectiveID] >= obj.Target {
		logger.Debug("Objective completed", "player", pql.player.ID(), "quest", questID, "objective", objectiveID)
		pql.player.Notify("Objective complete: "+obj.Name, NotifySuccess)
	}

	pql.resync.touch(questID)
	pql.saves.touch(saveKey)
	pql.RecomputeAlerts()
	return true
}

// CompleteQuest finishes an active quest whose objectives are all met and
// grants its reward. If the grant fails nothing changes and the quest stays
// active so the player can retry.
func (pql *PlayerQuestLog) CompleteQuest(questID string) bool {
	if pql.closed {
		return false
	}
	qs, exists := pql.states[questID]
	if !exists || qs.Status != QuestStatusActive {
		return false
	}
	if !qs.objectivesComplete() {
		return false
	}
	if !qs.quest.grant(pql.player) {
		logger.Info("Quest reward grant failed", "player", pql.player.ID(), "quest", questID)
		return false
	}

	qs.Status = QuestStatusCompleted
	qs.cleanup.Release()
	qs.cleanup = nil
	delete(pql.active, questID)

	logger.Debug("Quest completed", "player", pql.player.ID(), "quest", questID)
	pql.player.Notify("Quest complete: "+qs.quest.Name, NotifySuccess)

	pql.resync.touch(questID)
	pql.saves.touch(saveKey)
	pql.RecomputeAlerts()
	return true
}

// IsQuestActive checks if a quest is currently in progress
func (pql *PlayerQuestLog) IsQuestActive(questID string) bool {
	qs, exists := pql.states[questID]
	return exists && qs.Status == QuestStatusActive
}

// IsQuestCompleted checks if a quest was completed
func (pql *PlayerQuestLog) IsQuestCompleted(questID string) bool {
	qs, exists := pql.states[questID]
	return exists && qs.Status == QuestStatusCompleted
}

// HasStartedQuest checks if a quest was ever started
func (pql *PlayerQuestLog) HasStartedQuest(questID string) bool {
	_, exists := pql.states[questID]
	return exists
}

// IsObjectiveCompleted is true iff the quest is active and the objective's
// progress has reached its target.
func (pql *PlayerQuestLog) IsObjectiveCompleted(questID, objectiveID string) bool {
	qs, exists := pql.states[questID]
	if !exists || qs.Status != QuestStatusActive {
		return false
	}
	obj, ok := qs.quest.Objective(objectiveID)
	if !ok {
		return false
	}
	return qs.Progress[objectiveID] >= obj.Target
}

// CanCompleteQuest checks if an active quest has all objectives met
func (pql *PlayerQuestLog) CanCompleteQuest(questID string) bool {
	qs, exists := pql.states[questID]
	return exists && qs.Status == QuestStatusActive && qs.objectivesComplete()
}

// ObjectiveProgress returns the raw progress of an objective
func (pql *PlayerQuestLog) ObjectiveProgress(questID, objectiveID string) (int, bool) {
	qs, exists := pql.states[questID]
	if !exists {
		return 0, false
	}
	progress, ok := qs.Progress[objectiveID]
	return progress, ok
}

// GetQuestState returns a copy of the state for a quest
func (pql *PlayerQuestLog) GetQuestState(questID string) (QuestState, bool) {
	qs, exists := pql.states[questID]
	if !exists {
		return QuestState{}, false
	}
	return qs.snapshot(), true
}

// GetActiveQuests returns active quest IDs in start order
func (pql *PlayerQuestLog) GetActiveQuests() []string {
	return pql.questsWithStatus(QuestStatusActive)
}

// GetCompletedQuests returns completed quest IDs in start order
func (pql *PlayerQuestLog) GetCompletedQuests() []string {
	return pql.questsWithStatus(QuestStatusCompleted)
}

func (pql *PlayerQuestLog) questsWithStatus(status QuestStatus) []string {
	ids := make([]string, 0, len(pql.order))
	for _, id := range pql.order {
		if pql.states[id].Status == status {
			ids = append(ids, id)
		}
	}
	return ids
}

// Talk returns the root dialogue options an NPC type offers this player
func (pql *PlayerQuestLog) Talk(npc string) []*DialogueOption {
	return pql.registry.RootOptions(npc, pql)
}

// Select resolves an option picked by the player and runs its effect.
// Stale or unknown IDs resolve to nothing and change nothing.
func (pql *PlayerQuestLog) Select(npc string, optionID int) (*DialogueOption, bool) {
	if pql.closed {
		return nil, false
	}
	opt, ok := pql.registry.ResolveOption(npc, optionID, pql)
	if !ok {
		logger.Debug("Ignoring stale dialogue selection", "player", pql.player.ID(), "npc", npc, "option", optionID)
		return nil, false
	}
	if opt.OnSelect != nil && !opt.Exit {
		opt.OnSelect(pql)
	}
	return opt, true
}

// SyncAll sends every quest's snapshot to the client right away
func (pql *PlayerQuestLog) SyncAll() {
	for _, id := range pql.order {
		pql.sendQuestUpdate(id)
	}
}

// Flush performs any pending UI resyncs and persistence write immediately
func (pql *PlayerQuestLog) Flush() {
	pql.resync.flushAll()
	pql.saves.flushAll()
}

// PendingSave reports whether a persistence write is scheduled
func (pql *PlayerQuestLog) PendingSave() bool {
	return len(pql.saves.pending) > 0
}

// Close writes pending progress and releases every outstanding setup hook.
// The log rejects further lifecycle changes afterwards.
func (pql *PlayerQuestLog) Close() {
	if pql.closed {
		return
	}
	pql.saves.flushAll()
	pql.resync.stop()
	pql.closed = true

	ids := make([]string, 0, len(pql.states))
	for id := range pql.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pql.states[id].cleanup.Release()
		pql.states[id].cleanup = nil
	}
}

// persist writes the serialized log through the player's storage capability.
func (pql *PlayerQuestLog) persist() {
	data, err := pql.ToJSON()
	if err != nil {
		logger.Error("Failed to serialize quest log", "player", pql.player.ID(), "error", err)
		return
	}
	pql.player.Persist(data)
}
