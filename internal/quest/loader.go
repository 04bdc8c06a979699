package quest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
	"gopkg.in/yaml.v3"
)

// QuestObjectiveYAML for YAML parsing
type QuestObjectiveYAML struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Target      int    `yaml:"target"`
}

// ItemStackYAML for YAML parsing
type ItemStackYAML struct {
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
}

// QuestRewardYAML for YAML parsing
type QuestRewardYAML struct {
	Items       []ItemStackYAML `yaml:"items"`
	SkillPoints int             `yaml:"skill_points"`
	Currency    int             `yaml:"currency"`
}

// TrackYAML binds an event kind to an objective
type TrackYAML struct {
	Event     string `yaml:"event"`     // gather, deliver, talk, craft
	Target    string `yaml:"target"`    // Empty = any
	Objective string `yaml:"objective"` // Objective ID to advance
}

// ProgressEffectYAML advances an objective when an option is picked
type ProgressEffectYAML struct {
	Objective string `yaml:"objective"`
	Amount    int    `yaml:"amount"`
}

// TradeEffectYAML swaps items and currency when an option is picked
type TradeEffectYAML struct {
	Take     []ItemStackYAML `yaml:"take"`
	Give     []ItemStackYAML `yaml:"give"`
	Currency int             `yaml:"currency"`
}

// EffectYAML lists what an option does. Effects apply in the order trade,
// progress, complete, start; a failed trade skips the rest.
type EffectYAML struct {
	Start    bool                `yaml:"start"`
	Complete bool                `yaml:"complete"`
	Progress *ProgressEffectYAML `yaml:"progress"`
	Trade    *TradeEffectYAML    `yaml:"trade"`
}

// OptionYAML for YAML parsing
type OptionYAML struct {
	Text    string        `yaml:"text"`
	Effect  *EffectYAML   `yaml:"effect"`
	Dismiss bool          `yaml:"dismiss"`
	Exit    bool          `yaml:"exit"`
	Next    *DialogueYAML `yaml:"next"`
}

// DialogueYAML for YAML parsing
type DialogueYAML struct {
	Text    string       `yaml:"text"`
	Options []OptionYAML `yaml:"options"`
}

// InteractionYAML for YAML parsing
type InteractionYAML struct {
	NPC       string          `yaml:"npc"`
	Visible   string          `yaml:"visible"`   // always, not_started, active, ready, completed, objective_pending, objective_done
	Objective string          `yaml:"objective"` // Used by the objective_* visibility modes
	And       []ConditionYAML `yaml:"and"`       // Extra conditions that must also hold
	Root      OptionYAML      `yaml:"root"`
}

// ConditionYAML is one additional visibility condition
type ConditionYAML struct {
	Visible   string `yaml:"visible"`
	Objective string `yaml:"objective"`
}

// QuestDefinition for YAML parsing
type QuestDefinition struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Objectives  []QuestObjectiveYAML `yaml:"objectives"`
	Rewards     QuestRewardYAML      `yaml:"rewards"`
	Prereqs     []string             `yaml:"prereqs"`
	Track       []TrackYAML          `yaml:"track"`
	Dialogue    []InteractionYAML    `yaml:"dialogue"`
}

// QuestsConfig represents the quests.yaml structure
type QuestsConfig struct {
	Quests map[string]QuestDefinition `yaml:"quests"`
}

// LoadQuestsFromYAML loads quest definitions from YAML file
func LoadQuestsFromYAML(filename string) (*QuestsConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read quests file: %w", err)
	}
	return ParseQuestsYAML(data)
}

// ParseQuestsYAML decodes quest definitions from raw YAML
func ParseQuestsYAML(data []byte) (*QuestsConfig, error) {
	var config QuestsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse quests YAML: %w", err)
	}
	if config.Quests == nil {
		config.Quests = make(map[string]QuestDefinition)
	}
	return &config, nil
}

// Merge combines another QuestsConfig into this one
func (config *QuestsConfig) Merge(other *QuestsConfig) {
	if other == nil {
		return
	}
	for id, def := range other.Quests {
		config.Quests[id] = def
	}
}

// LoadQuestsFromDirectory loads and merges all YAML files from a directory.
// Files are read in name order, so a later file overrides an earlier one
// that defines the same quest ID.
func LoadQuestsFromDirectory(dir string) (*QuestsConfig, error) {
	merged := &QuestsConfig{
		Quests: make(map[string]QuestDefinition),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		filePath := filepath.Join(dir, name)
		config, err := LoadQuestsFromYAML(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
		}
		merged.Merge(config)
		logger.Info("Loaded quest file", "path", filePath, "quests", len(config.Quests))
	}

	logger.Info("Loaded quests from directory", "dir", dir, "files", len(names), "total_quests", len(merged.Quests))
	return merged, nil
}

// createQuestFromDefinition converts a YAML definition to a Quest struct
func createQuestFromDefinition(id string, def *QuestDefinition) (*Quest, error) {
	q := &Quest{
		ID:          id,
		Name:        def.Name,
		Description: def.Description,
		Objectives:  make([]Objective, len(def.Objectives)),
		Rewards: Reward{
			Items:       convertStacks(def.Rewards.Items),
			SkillPoints: def.Rewards.SkillPoints,
			Currency:    def.Rewards.Currency,
		},
		Prereqs: def.Prereqs,
	}
	if q.Prereqs == nil {
		q.Prereqs = []string{}
	}

	for i, objDef := range def.Objectives {
		q.Objectives[i] = Objective{
			ID:          objDef.ID,
			Name:        objDef.Name,
			Description: objDef.Description,
			Target:      objDef.Target,
		}
	}

	hooks := make([]SetupFunc, 0, len(def.Track))
	for _, tr := range def.Track {
		if _, ok := q.Objective(tr.Objective); !ok {
			return nil, fmt.Errorf("quest %q: track references unknown objective %q", id, tr.Objective)
		}
		if tr.Event == "" {
			return nil, fmt.Errorf("quest %q: track for %q has no event", id, tr.Objective)
		}
		hooks = append(hooks, TrackEvent(tr.Event, tr.Target, id, tr.Objective))
	}
	switch len(hooks) {
	case 0:
	case 1:
		q.Setup = hooks[0]
	default:
		q.Setup = CombineSetup(hooks...)
	}

	for i := range def.Dialogue {
		ia, err := buildInteraction(q, &def.Dialogue[i])
		if err != nil {
			return nil, fmt.Errorf("quest %q: dialogue %d: %w", id, i, err)
		}
		q.Interactions = append(q.Interactions, ia)
	}

	return q, nil
}

func buildInteraction(q *Quest, def *InteractionYAML) (*DialogueInteraction, error) {
	visible, err := parseVisibility(q, def.Visible, def.Objective)
	if err != nil {
		return nil, err
	}
	if len(def.And) > 0 {
		preds := make([]VisibleFunc, 0, len(def.And)+1)
		if visible != nil {
			preds = append(preds, visible)
		}
		for i, cond := range def.And {
			pred, err := parseVisibility(q, cond.Visible, cond.Objective)
			if err != nil {
				return nil, fmt.Errorf("and %d: %w", i, err)
			}
			if pred != nil {
				preds = append(preds, pred)
			}
		}
		switch len(preds) {
		case 0:
		case 1:
			visible = preds[0]
		default:
			visible = All(preds...)
		}
	}
	root, err := buildOption(q, &def.Root)
	if err != nil {
		return nil, err
	}
	return &DialogueInteraction{
		NPC:     def.NPC,
		Root:    root,
		Visible: visible,
	}, nil
}

// parseVisibility converts a visibility mode to a predicate
func parseVisibility(q *Quest, mode, objectiveID string) (VisibleFunc, error) {
	needObjective := func() error {
		if _, ok := q.Objective(objectiveID); !ok {
			return fmt.Errorf("visibility %q needs a known objective, got %q", mode, objectiveID)
		}
		return nil
	}

	switch mode {
	case "", "always":
		return nil, nil
	case "not_started":
		return WhenNotStarted(q), nil
	case "active":
		return WhenActive(q.ID), nil
	case "ready":
		return WhenReadyToComplete(q.ID), nil
	case "completed":
		return WhenCompleted(q.ID), nil
	case "objective_pending":
		if err := needObjective(); err != nil {
			return nil, err
		}
		return WhenObjectivePending(q.ID, objectiveID), nil
	case "objective_done":
		if err := needObjective(); err != nil {
			return nil, err
		}
		return WhenObjectiveDone(q.ID, objectiveID), nil
	default:
		return nil, fmt.Errorf("unknown visibility %q", mode)
	}
}

func buildOption(q *Quest, def *OptionYAML) (*DialogueOption, error) {
	opt := &DialogueOption{
		Text:    def.Text,
		Dismiss: def.Dismiss,
		Exit:    def.Exit,
	}
	if def.Exit && def.Effect != nil {
		return nil, fmt.Errorf("exit option %q cannot have an effect", def.Text)
	}
	if def.Effect != nil {
		onSelect, err := buildEffect(q, def.Effect)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", def.Text, err)
		}
		opt.OnSelect = onSelect
	}

	if def.Next != nil {
		opt.Next = &Dialogue{Text: def.Next.Text}
		for i := range def.Next.Options {
			child, err := buildOption(q, &def.Next.Options[i])
			if err != nil {
				return nil, err
			}
			opt.Next.Options = append(opt.Next.Options, child)
		}
	}
	return opt, nil
}

func buildEffect(q *Quest, def *EffectYAML) (func(pql *PlayerQuestLog), error) {
	if def.Progress != nil {
		if _, ok := q.Objective(def.Progress.Objective); !ok {
			return nil, fmt.Errorf("progress effect references unknown objective %q", def.Progress.Objective)
		}
	}

	var take, give []ItemStack
	if def.Trade != nil {
		take = convertStacks(def.Trade.Take)
		give = convertStacks(def.Trade.Give)
		q.TradeItems = append(q.TradeItems, take...)
		q.TradeItems = append(q.TradeItems, give...)
	}

	return func(pql *PlayerQuestLog) {
		if def.Trade != nil && !Transact(pql.Player(), take, give, def.Trade.Currency) {
			return
		}
		if def.Progress != nil {
			amount := def.Progress.Amount
			if amount == 0 {
				amount = 1
			}
			pql.AdjustObjectiveProgress(q.ID, def.Progress.Objective, amount)
		}
		if def.Complete {
			pql.CompleteQuest(q.ID)
		}
		if def.Start {
			pql.StartQuest(q)
		}
	}, nil
}

func convertStacks(defs []ItemStackYAML) []ItemStack {
	stacks := make([]ItemStack, 0, len(defs))
	for _, d := range defs {
		qty := d.Quantity
		if qty == 0 {
			qty = 1
		}
		stacks = append(stacks, ItemStack{Item: d.Item, Quantity: qty})
	}
	return stacks
}
