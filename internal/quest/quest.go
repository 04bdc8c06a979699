// Package quest tracks per-player quest progress and compiles quest dialogue
// trees into a per-NPC option index.
package quest

// Objective is one countable sub-goal of a quest.
type Objective struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Target      int    `json:"target"` // Progress needed, at least 1
}

// ItemStack is a quantity of a single item class.
type ItemStack struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// Reward describes what a player receives on completion
type Reward struct {
	Items       []ItemStack `json:"items"`
	SkillPoints int         `json:"skillPoints"`
	Currency    int         `json:"currency"`
}

// IsEmpty returns true if the reward grants nothing
func (r Reward) IsEmpty() bool {
	return len(r.Items) == 0 && r.SkillPoints == 0 && r.Currency == 0
}

// SetupFunc is called once when a player starts a quest (and again when the
// quest is restored from saved data). The returned function, if any, is the
// cleanup action released when the quest completes.
type SetupFunc func(pql *PlayerQuestLog) func()

// GrantFunc pays out a quest reward. It must be all-or-nothing: a false
// return means the player's items and currency are unchanged.
type GrantFunc func(p Player) bool

// Quest is a static quest definition. Definitions are created at load time
// and are never mutated once registered.
type Quest struct {
	ID           string
	Name         string
	Description  string
	Objectives   []Objective
	Rewards      Reward
	Prereqs      []string // Quest IDs that must be completed before starting
	Interactions []*DialogueInteraction

	// TradeItems lists every stack moved by the quest's dialogue trades,
	// taken or given. Content checks only; trades run from OnSelect.
	TradeItems []ItemStack

	// Setup arms progress tracking for one player. Optional.
	Setup SetupFunc

	// GrantReward overrides the default atomic grant of Rewards. Optional.
	GrantReward GrantFunc
}

// Objective returns the objective with the given ID
func (q *Quest) Objective(id string) (Objective, bool) {
	for _, obj := range q.Objectives {
		if obj.ID == id {
			return obj, true
		}
	}
	return Objective{}, false
}

// ItemIDs returns every item the quest names in rewards or trades, sorted
// and without duplicates.
func (q *Quest) ItemIDs() []string {
	seen := make(map[string]bool)
	for _, st := range q.Rewards.Items {
		seen[st.Item] = true
	}
	for _, st := range q.TradeItems {
		seen[st.Item] = true
	}
	return sortedKeys(seen)
}

// HasPrereqs returns true if quest has prerequisite quests
func (q *Quest) HasPrereqs() bool {
	return len(q.Prereqs) > 0
}

// grant pays out the reward through the override or the default grant.
func (q *Quest) grant(p Player) bool {
	if q.GrantReward != nil {
		return q.GrantReward(p)
	}
	return GrantRewardAtomic(p, q.Rewards)
}

// NotifyKind classifies a player-facing notification.
type NotifyKind string

const (
	NotifyInfo    NotifyKind = "info"
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
)

// Player is the set of capabilities the quest system needs from its host.
// Item and currency calls report success; a false return means nothing
// changed.
type Player interface {
	// ID identifies the player for logging and persistence.
	ID() string

	HasItem(item string, quantity int) bool
	AddItem(item string, quantity int) bool
	RemoveItem(item string, quantity int) bool
	AdjustCurrency(amount int) bool

	// Notify shows a user-facing message. Fire-and-forget.
	Notify(message string, kind NotifyKind)

	// SendUIData sends a structured message to the client UI. Fire-and-forget.
	SendUIData(payload any)

	// Persist durably stores the serialized quest log.
	Persist(data []byte)

	// LoadPersisted returns the data last passed to Persist, if any.
	LoadPersisted() ([]byte, bool)

	// Spawned reports whether the player has an in-world representation
	// that can display NPC alerts.
	Spawned() bool
}

// SkillPointHolder is implemented by players that can receive skill points.
type SkillPointHolder interface {
	AddSkillPoints(points int) bool
}

// CapacityChecker is implemented by players that can report ahead of time
// whether a set of item stacks would fit.
type CapacityChecker interface {
	CanAddItems(stacks []ItemStack) bool
}
