package items

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	content := `items:
  oak_log:
    name: "Oak Log"
    description: "A sturdy log."
    type: material
    max_stack: 50
    value: 2
  iron_axe:
    name: "Iron Axe"
    type: tool
    value: 40
  pinecone:
    type: misc
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if c.Count() != 3 {
		t.Errorf("Count = %d, want 3", c.Count())
	}

	log, ok := c.Get("oak_log")
	if !ok {
		t.Fatal("oak_log should exist")
	}
	if log.MaxStack != 50 || log.Type != Material || log.Value != 2 {
		t.Errorf("oak_log = %+v", log)
	}

	axe, _ := c.Get("iron_axe")
	if axe.MaxStack != 1 {
		t.Errorf("Tools default to stack 1, got %d", axe.MaxStack)
	}

	cone, _ := c.Get("pinecone")
	if cone.Name != "pinecone" || cone.MaxStack != DefaultMaxStack {
		t.Errorf("pinecone = %+v", cone)
	}

	ids := c.IDs()
	if len(ids) != 3 || ids[0] != "iron_axe" || ids[2] != "pinecone" {
		t.Errorf("IDs = %v", ids)
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	if _, err := LoadCatalog("/nonexistent/items.yaml"); err == nil {
		t.Error("Should return error for missing file")
	}

	_, err := NewCatalog(&ItemsConfig{Items: map[string]ItemDefinition{
		"bad": {MaxStack: -1},
	}})
	if err == nil {
		t.Error("Should reject negative max_stack")
	}
}

func TestStringToItemType(t *testing.T) {
	tests := map[string]ItemType{
		"material":   Material,
		"tool":       Tool,
		"consumable": Consumable,
		"quest":      QuestItem,
		"whatever":   Misc,
	}
	for in, want := range tests {
		got := StringToItemType(in)
		if got != want {
			t.Errorf("StringToItemType(%q) = %v, want %v", in, got, want)
		}
		if want != Misc && got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
}
