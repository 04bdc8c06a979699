package quest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DialogueIDBase is the first option ID handed out for each NPC type.
const DialogueIDBase = 1000

var (
	// ErrDuplicateQuest is returned when registering a quest ID twice.
	ErrDuplicateQuest = errors.New("quest already registered")

	// ErrSharedOption is returned when a dialogue node already belongs to
	// another interaction. Each node carries exactly one option ID.
	ErrSharedOption = errors.New("dialogue option already registered")
)

// dialogueEntry is the resolver's view of one compiled option.
type dialogueEntry struct {
	option      *DialogueOption
	interaction *DialogueInteraction
}

// Registry holds all quest definitions and the compiled dialogue index.
// The index is built by InitializeQuests and is read-only afterwards;
// a rebuild takes the write lock so it never overlaps a resolution.
type Registry struct {
	mu     sync.RWMutex
	quests map[string]*Quest // questID -> Quest
	order  []string          // registration order

	counters map[string]int                   // npc -> next option ID
	options  map[string]map[int]dialogueEntry // npc -> optionID -> entry
	roots    map[string][]int                 // npc -> root option IDs, ascending

	owners map[*DialogueOption]string // node -> owning quest ID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		quests:   make(map[string]*Quest),
		counters: make(map[string]int),
		options:  make(map[string]map[int]dialogueEntry),
		roots:    make(map[string][]int),
		owners:   make(map[*DialogueOption]string),
	}
}

// Register adds a quest definition. Its interactions are not resolvable
// until the next InitializeQuests.
func (r *Registry) Register(q *Quest) error {
	nodes, err := validateQuest(q)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.quests[q.ID]; exists {
		return fmt.Errorf("quest %q: %w", q.ID, ErrDuplicateQuest)
	}
	for _, opt := range nodes {
		if owner, taken := r.owners[opt]; taken {
			return fmt.Errorf("quest %q: option %q is used by quest %q: %w", q.ID, opt.Text, owner, ErrSharedOption)
		}
	}

	for _, opt := range nodes {
		r.owners[opt] = q.ID
	}

	for _, ia := range q.Interactions {
		ia.quest = q
	}
	r.quests[q.ID] = q
	r.order = append(r.order, q.ID)
	return nil
}

// validateQuest rejects definitions the engine cannot run safely and
// returns every dialogue node the quest owns.
func validateQuest(q *Quest) ([]*DialogueOption, error) {
	if q == nil {
		return nil, errors.New("nil quest")
	}
	if q.ID == "" {
		return nil, errors.New("quest has empty ID")
	}

	seen := make(map[string]bool, len(q.Objectives))
	for _, obj := range q.Objectives {
		if obj.ID == "" {
			return nil, fmt.Errorf("quest %q: objective with empty ID", q.ID)
		}
		if seen[obj.ID] {
			return nil, fmt.Errorf("quest %q: duplicate objective %q", q.ID, obj.ID)
		}
		if obj.Target < 1 {
			return nil, fmt.Errorf("quest %q: objective %q target must be at least 1", q.ID, obj.ID)
		}
		seen[obj.ID] = true
	}

	// One visited set across interactions: a node shared between two of
	// the quest's trees is rejected like a node repeated within one.
	visited := make(map[*DialogueOption]bool)
	var nodes []*DialogueOption
	for i, ia := range q.Interactions {
		if ia == nil || ia.NPC == "" || ia.Root == nil {
			return nil, fmt.Errorf("quest %q: interaction %d needs an NPC and a root option", q.ID, i)
		}
		var err error
		if nodes, err = checkTree(ia.Root, visited, nodes); err != nil {
			return nil, fmt.Errorf("quest %q: interaction %d: %w", q.ID, i, err)
		}
	}
	return nodes, nil
}

// checkTree rejects dialogue graphs that share or revisit a node, appending
// every node it walks to nodes.
func checkTree(root *DialogueOption, visited map[*DialogueOption]bool, nodes []*DialogueOption) ([]*DialogueOption, error) {
	stack := []*DialogueOption{root}
	for len(stack) > 0 {
		opt := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[opt] {
			return nodes, fmt.Errorf("option %q appears more than once in the dialogue tree: %w", opt.Text, ErrSharedOption)
		}
		visited[opt] = true
		nodes = append(nodes, opt)
		if opt.Next == nil {
			continue
		}
		for _, child := range opt.Next.Options {
			if child == nil {
				return nodes, fmt.Errorf("option %q has a nil follow-up", opt.Text)
			}
			stack = append(stack, child)
		}
	}
	return nodes, nil
}

// GetQuest returns a quest by ID
func (r *Registry) GetQuest(id string) (*Quest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, exists := r.quests[id]
	return q, exists
}

// AllQuests returns all registered quests in registration order
func (r *Registry) AllQuests() []*Quest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	quests := make([]*Quest, 0, len(r.order))
	for _, id := range r.order {
		quests = append(quests, r.quests[id])
	}
	return quests
}

// Count returns the number of registered quests
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.quests)
}

// InitializeQuests rebuilds the dialogue index from every registered quest.
// All previous index state is dropped first. Options are numbered per NPC
// type starting at DialogueIDBase, in registration order and pre-order
// left-to-right within each tree, so identical content always yields
// identical IDs.
func (r *Registry) InitializeQuests() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters = make(map[string]int)
	r.options = make(map[string]map[int]dialogueEntry)
	r.roots = make(map[string][]int)

	for _, id := range r.order {
		for _, ia := range r.quests[id].Interactions {
			r.compile(ia)
		}
	}
}

// compile numbers one interaction's tree. Must be called with lock held.
func (r *Registry) compile(ia *DialogueInteraction) {
	next, seen := r.counters[ia.NPC]
	if !seen {
		next = DialogueIDBase
	}
	index := r.options[ia.NPC]
	if index == nil {
		index = make(map[int]dialogueEntry)
		r.options[ia.NPC] = index
	}

	// LIFO work list; children go on in reverse so they pop left-to-right.
	stack := []*DialogueOption{ia.Root}
	for len(stack) > 0 {
		opt := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		opt.id = next
		index[next] = dialogueEntry{option: opt, interaction: ia}
		if opt == ia.Root {
			r.roots[ia.NPC] = append(r.roots[ia.NPC], next)
		}
		next++

		if opt.Next == nil {
			continue
		}
		for i := len(opt.Next.Options) - 1; i >= 0; i-- {
			stack = append(stack, opt.Next.Options[i])
		}
	}

	r.counters[ia.NPC] = next
}

// RootOptions returns the root options for an NPC type that are visible to
// the player right now, in ascending ID order.
func (r *Registry) RootOptions(npc string, pql *PlayerQuestLog) []*DialogueOption {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var visible []*DialogueOption
	for _, id := range r.roots[npc] {
		entry := r.options[npc][id]
		if entry.interaction.visible(pql) {
			visible = append(visible, entry.option)
		}
	}
	return visible
}

// ResolveOption maps a client-supplied option ID back to its node. The
// owning interaction's predicate is evaluated again here, so an option that
// stopped being visible after the menu was shown resolves to nothing.
func (r *Registry) ResolveOption(npc string, id int, pql *PlayerQuestLog) (*DialogueOption, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.options[npc][id]
	if !exists {
		return nil, false
	}
	if !entry.interaction.visible(pql) {
		return nil, false
	}
	return entry.option, true
}

// NPCTypes returns every NPC type with compiled dialogue, sorted
func (r *Registry) NPCTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	npcs := make([]string, 0, len(r.options))
	for npc := range r.options {
		npcs = append(npcs, npc)
	}
	sort.Strings(npcs)
	return npcs
}

// OptionIDs returns every compiled option ID for an NPC type, ascending
func (r *Registry) OptionIDs(npc string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.options[npc]))
	for id := range r.options[npc] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Option returns a compiled option without checking visibility. Intended
// for tooling; player-facing paths use ResolveOption.
func (r *Registry) Option(npc string, id int) (*DialogueOption, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.options[npc][id]
	return entry.option, exists
}

// LoadFromConfig registers every quest in the config, in sorted ID order,
// then rebuilds the dialogue index.
func (r *Registry) LoadFromConfig(config *QuestsConfig) error {
	ids := make([]string, 0, len(config.Quests))
	for id := range config.Quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def := config.Quests[id]
		q, err := createQuestFromDefinition(id, &def)
		if err != nil {
			return err
		}
		if err := r.Register(q); err != nil {
			return err
		}
	}

	r.InitializeQuests()
	return nil
}

// LoadFromYAML loads quests from a YAML file
func (r *Registry) LoadFromYAML(filename string) error {
	config, err := LoadQuestsFromYAML(filename)
	if err != nil {
		return err
	}
	return r.LoadFromConfig(config)
}

// LoadFromDirectory loads quests from all YAML files in a directory
func (r *Registry) LoadFromDirectory(dir string) error {
	config, err := LoadQuestsFromDirectory(dir)
	if err != nil {
		return err
	}
	return r.LoadFromConfig(config)
}
