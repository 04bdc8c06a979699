package quest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/events"
)

const firstLogsYAML = `quests:
  first_logs:
    name: "First Logs"
    description: "The foreman needs oak logs."
    objectives:
      - id: chop
        name: "Chop oak logs"
        target: 3
    rewards:
      currency: 25
      skill_points: 1
      items:
        - item: iron_axe
          quantity: 1
    track:
      - event: gather
        target: oak_log
        objective: chop
    dialogue:
      - npc: foreman
        visible: not_started
        root:
          text: "Got any work?"
          next:
            text: "Bring me three oak logs."
            options:
              - text: "On it."
                dismiss: true
                effect:
                  start: true
              - text: "Not now."
                exit: true
                dismiss: true
      - npc: foreman
        visible: ready
        root:
          text: "Here are your logs."
          dismiss: true
          effect:
            complete: true
`

func writeQuestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestLoadQuestsFromYAML_ValidFile(t *testing.T) {
	path := writeQuestFile(t, t.TempDir(), "quests.yaml", firstLogsYAML)

	config, err := LoadQuestsFromYAML(path)
	if err != nil {
		t.Fatalf("LoadQuestsFromYAML returned error: %v", err)
	}

	def, exists := config.Quests["first_logs"]
	if !exists {
		t.Fatal("first_logs should exist in config")
	}
	if def.Name != "First Logs" {
		t.Errorf("Quest name mismatch: got %s, want First Logs", def.Name)
	}
	if len(def.Dialogue) != 2 {
		t.Errorf("Should have 2 interactions, got %d", len(def.Dialogue))
	}
	if def.Rewards.SkillPoints != 1 {
		t.Errorf("Skill points mismatch: got %d, want 1", def.Rewards.SkillPoints)
	}
}

func TestLoadQuestsFromYAML_MissingFile(t *testing.T) {
	if _, err := LoadQuestsFromYAML("/nonexistent/path/quests.yaml"); err == nil {
		t.Error("Should return error for missing file")
	}
}

func TestLoadQuestsFromYAML_MalformedYAML(t *testing.T) {
	path := writeQuestFile(t, t.TempDir(), "quests.yaml", "quests:\n  q:\n    objectives: [broken\n")
	if _, err := LoadQuestsFromYAML(path); err == nil {
		t.Error("Should return error for malformed YAML")
	}
}

func TestLoadQuestsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "a.yaml", firstLogsYAML)
	writeQuestFile(t, dir, "b.yml", "quests:\n  second:\n    name: Second\n")
	writeQuestFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	config, err := LoadQuestsFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadQuestsFromDirectory returned error: %v", err)
	}
	if len(config.Quests) != 2 {
		t.Errorf("Should have 2 quests, got %d", len(config.Quests))
	}
}

func TestLoadQuestsFromDirectory_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "01.yaml", "quests:\n  q:\n    name: Old\n")
	writeQuestFile(t, dir, "02.yaml", "quests:\n  q:\n    name: New\n")

	config, err := LoadQuestsFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadQuestsFromDirectory returned error: %v", err)
	}
	if got := config.Quests["q"].Name; got != "New" {
		t.Errorf("Quest name = %q, want New", got)
	}
}

func TestLoadFromYAML_EndToEnd(t *testing.T) {
	path := writeQuestFile(t, t.TempDir(), "quests.yaml", firstLogsYAML)

	r := NewRegistry()
	if err := r.LoadFromYAML(path); err != nil {
		t.Fatalf("LoadFromYAML returned error: %v", err)
	}

	ids := r.OptionIDs("foreman")
	want := []int{1000, 1001, 1002, 1003}
	if len(ids) != len(want) {
		t.Fatalf("OptionIDs = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("OptionIDs = %v, want %v", ids, want)
		}
	}

	p := newFakePlayer()
	pql := NewPlayerQuestLog(p, r, Options{Scheduler: &manualScheduler{}})

	roots := pql.Talk("foreman")
	if len(roots) != 1 || roots[0].Text != "Got any work?" {
		t.Fatalf("Unexpected root options before start: %+v", roots)
	}

	// Exit option does nothing.
	if _, ok := pql.Select("foreman", 1002); !ok {
		t.Fatal("Exit option should resolve")
	}
	if pql.HasStartedQuest("first_logs") {
		t.Fatal("Exit option must not start the quest")
	}

	if _, ok := pql.Select("foreman", 1001); !ok {
		t.Fatal("Accept option should resolve")
	}
	if !pql.IsQuestActive("first_logs") {
		t.Fatal("Quest should be active after accepting")
	}
	if _, ok := pql.Select("foreman", 1001); ok {
		t.Error("Accept option should be stale once the quest started")
	}

	for i := 0; i < 3; i++ {
		pql.Events().Publish(events.Event{Kind: events.KindGather, Target: "oak_log"})
	}
	if !pql.CanCompleteQuest("first_logs") {
		t.Fatal("Quest should be ready after three logs")
	}

	if _, ok := pql.Select("foreman", 1003); !ok {
		t.Fatal("Turn-in option should resolve")
	}
	if !pql.IsQuestCompleted("first_logs") {
		t.Fatal("Quest should be completed after turn-in")
	}
	if p.currency != 25 || p.skillPoints != 1 || p.items["iron_axe"] != 1 {
		t.Errorf("Reward not granted: currency=%d skill=%d items=%v", p.currency, p.skillPoints, p.items)
	}
}

func TestLoadFromConfig_SortedRegistration(t *testing.T) {
	config := &QuestsConfig{Quests: map[string]QuestDefinition{
		"zeta":  {Name: "Zeta", Dialogue: []InteractionYAML{{NPC: "n", Root: OptionYAML{Text: "z"}}}},
		"alpha": {Name: "Alpha", Dialogue: []InteractionYAML{{NPC: "n", Root: OptionYAML{Text: "a"}}}},
	}}

	r := NewRegistry()
	if err := r.LoadFromConfig(config); err != nil {
		t.Fatalf("LoadFromConfig returned error: %v", err)
	}

	opt, _ := r.Option("n", 1000)
	if opt == nil || opt.Text != "a" {
		t.Errorf("Option 1000 should belong to alpha, got %+v", opt)
	}
}

func TestCreateQuestFromDefinition_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  QuestDefinition
	}{
		{
			name: "unknown visibility",
			def: QuestDefinition{Dialogue: []InteractionYAML{
				{NPC: "n", Visible: "sometimes", Root: OptionYAML{Text: "x"}},
			}},
		},
		{
			name: "objective visibility without objective",
			def: QuestDefinition{Dialogue: []InteractionYAML{
				{NPC: "n", Visible: "objective_done", Root: OptionYAML{Text: "x"}},
			}},
		},
		{
			name: "track unknown objective",
			def:  QuestDefinition{Track: []TrackYAML{{Event: "gather", Objective: "missing"}}},
		},
		{
			name: "track without event",
			def: QuestDefinition{
				Objectives: []QuestObjectiveYAML{{ID: "a", Target: 1}},
				Track:      []TrackYAML{{Objective: "a"}},
			},
		},
		{
			name: "progress unknown objective",
			def: QuestDefinition{Dialogue: []InteractionYAML{
				{NPC: "n", Root: OptionYAML{Text: "x", Effect: &EffectYAML{Progress: &ProgressEffectYAML{Objective: "missing"}}}},
			}},
		},
		{
			name: "exit with effect",
			def: QuestDefinition{Dialogue: []InteractionYAML{
				{NPC: "n", Root: OptionYAML{Text: "x", Exit: true, Effect: &EffectYAML{Start: true}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := createQuestFromDefinition("q", &tt.def); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestTradeEffect_AbortsOnFailure(t *testing.T) {
	config := &QuestsConfig{Quests: map[string]QuestDefinition{
		"planks": {
			Objectives: []QuestObjectiveYAML{{ID: "sell", Target: 1}},
			Dialogue: []InteractionYAML{{
				NPC: "miller",
				Root: OptionYAML{Text: "Sell", Effect: &EffectYAML{
					Trade:    &TradeEffectYAML{Take: []ItemStackYAML{{Item: "oak_log", Quantity: 2}}, Currency: 5},
					Progress: &ProgressEffectYAML{Objective: "sell"},
				}},
			}},
		},
	}}
	r := NewRegistry()
	if err := r.LoadFromConfig(config); err != nil {
		t.Fatalf("LoadFromConfig returned error: %v", err)
	}

	p := newFakePlayer()
	pql := NewPlayerQuestLog(p, r, Options{Scheduler: &manualScheduler{}})
	if !pql.StartQuestByID("planks") {
		t.Fatal("StartQuestByID failed")
	}

	pql.Select("miller", 1000)
	if progress, _ := pql.ObjectiveProgress("planks", "sell"); progress != 0 {
		t.Errorf("Progress should stay 0 after failed trade, got %d", progress)
	}

	p.items["oak_log"] = 2
	pql.Select("miller", 1000)
	if !pql.IsObjectiveCompleted("planks", "sell") {
		t.Error("Objective should complete after trade")
	}
	if p.currency != 5 || p.items["oak_log"] != 0 {
		t.Errorf("Trade not applied: currency=%d items=%v", p.currency, p.items)
	}
}

// optionByText finds a visible root option for npc by its text.
func optionByText(t *testing.T, pql *PlayerQuestLog, npc, text string) int {
	t.Helper()
	for _, opt := range pql.Talk(npc) {
		if opt.Text == text {
			return opt.ID()
		}
	}
	t.Fatalf("%s offers no %q", npc, text)
	return 0
}

func TestHandInOnlyOnce(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadFromDirectory("../../data/quests"); err != nil {
		t.Fatalf("LoadFromDirectory returned error: %v", err)
	}

	p := newFakePlayer()
	pql := NewPlayerQuestLog(p, r, Options{Scheduler: &manualScheduler{}})
	if !pql.StartQuestByID("first_logs") ||
		!pql.AdjustObjectiveProgress("first_logs", "chop", 3) ||
		!pql.CompleteQuest("first_logs") {
		t.Fatal("first_logs should complete")
	}
	if !pql.StartQuestByID("sticky_business") {
		t.Fatal("sticky_business should start after first_logs")
	}

	p.items["maple_sap"] = 4
	pql.Events().Publish(events.Event{Kind: events.KindGather, Target: "maple_sap", Quantity: 2})

	handIn := optionByText(t, pql, "tapper", "Here's your sap.")
	if _, ok := pql.Select("tapper", handIn); !ok {
		t.Fatal("First hand-in should resolve")
	}
	if !pql.IsObjectiveCompleted("sticky_business", "deliver") {
		t.Fatal("deliver should be done after handing in")
	}

	if _, ok := pql.Select("tapper", handIn); ok {
		t.Error("Hand-in should be stale once delivered")
	}
	if p.items["maple_sap"] != 2 {
		t.Errorf("maple_sap = %d, want 2 (only one trade)", p.items["maple_sap"])
	}

	reward := optionByText(t, pql, "tapper", "What do I get?")
	if _, ok := pql.Select("tapper", reward); !ok {
		t.Fatal("Reward option should resolve")
	}
	if !pql.IsQuestCompleted("sticky_business") || p.items["syrup_jar"] != 1 {
		t.Errorf("sticky_business not rewarded: completed=%v items=%v",
			pql.IsQuestCompleted("sticky_business"), p.items)
	}
}

func TestInteractionAndConditions(t *testing.T) {
	config, err := ParseQuestsYAML([]byte(`quests:
  q:
    objectives:
      - {id: a, target: 1}
      - {id: b, target: 1}
    dialogue:
      - npc: n
        visible: objective_done
        objective: a
        and:
          - {visible: objective_pending, objective: b}
        root: {text: "between"}
`))
	if err != nil {
		t.Fatalf("ParseQuestsYAML returned error: %v", err)
	}
	r := NewRegistry()
	if err := r.LoadFromConfig(config); err != nil {
		t.Fatalf("LoadFromConfig returned error: %v", err)
	}

	pql := NewPlayerQuestLog(newFakePlayer(), r, Options{Scheduler: &manualScheduler{}})
	pql.StartQuestByID("q")

	steps := []struct {
		objective string
		visible   bool
	}{
		{"", false},
		{"a", true},
		{"b", false},
	}
	for _, step := range steps {
		if step.objective != "" {
			pql.AdjustObjectiveProgress("q", step.objective, 1)
		}
		if got := len(pql.Talk("n")) == 1; got != step.visible {
			t.Errorf("after %q: visible = %v, want %v", step.objective, got, step.visible)
		}
	}

	def := config.Quests["q"]
	def.Dialogue[0].And[0].Objective = "missing"
	if _, err := createQuestFromDefinition("q", &def); err == nil {
		t.Error("Expected an error for an and-condition on an unknown objective")
	}
}
