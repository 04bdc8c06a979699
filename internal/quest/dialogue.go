package quest

// Dialogue is a line of NPC text followed by the options the player can pick.
type Dialogue struct {
	Text    string
	Options []*DialogueOption
}

// DialogueOption is one selectable line of NPC dialogue. Its numeric ID is
// assigned by Registry.InitializeQuests and is zero before compilation.
type DialogueOption struct {
	Text string

	// Next is the follow-up dialogue shown after selection. Optional.
	Next *Dialogue

	// OnSelect runs when the player picks this option. Optional.
	OnSelect func(pql *PlayerQuestLog)

	Dismiss bool // Close the dialogue after selection
	Exit    bool // Pure exit: selection never changes state

	id int
}

// ID returns the compiled option ID, or 0 if the registry has not been built.
func (o *DialogueOption) ID() int {
	return o.id
}

// HasNext returns true if selecting the option leads to more dialogue
func (o *DialogueOption) HasNext() bool {
	return o.Next != nil && len(o.Next.Options) > 0
}

// VisibleFunc decides whether an interaction is currently offered to a player.
type VisibleFunc func(pql *PlayerQuestLog) bool

// DialogueInteraction binds a dialogue tree to an NPC type for one quest.
type DialogueInteraction struct {
	NPC     string
	Root    *DialogueOption
	Visible VisibleFunc // nil means always visible

	quest *Quest
}

// Quest returns the quest that declared this interaction.
func (ia *DialogueInteraction) Quest() *Quest {
	return ia.quest
}

func (ia *DialogueInteraction) visible(pql *PlayerQuestLog) bool {
	if ia.Visible == nil {
		return true
	}
	return ia.Visible(pql)
}
