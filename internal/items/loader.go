package items

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ItemDefinition represents an item definition from the YAML file
type ItemDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	MaxStack    int    `yaml:"max_stack,omitempty"`
	Value       int    `yaml:"value"`
}

// ItemsConfig represents the structure of the items.yaml file
type ItemsConfig struct {
	Items map[string]ItemDefinition `yaml:"items"`
}

// LoadItemsFromYAML loads item definitions from a YAML file
func LoadItemsFromYAML(filename string) (*ItemsConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	var config ItemsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse items YAML: %w", err)
	}

	return &config, nil
}

// Catalog is the read-only set of known items.
type Catalog struct {
	items map[string]*Item
}

// NewCatalog builds a catalog from parsed definitions
func NewCatalog(config *ItemsConfig) (*Catalog, error) {
	c := &Catalog{items: make(map[string]*Item, len(config.Items))}
	for id, def := range config.Items {
		item, err := createItemFromDefinition(id, def)
		if err != nil {
			return nil, err
		}
		c.items[id] = item
	}
	return c, nil
}

// LoadCatalog reads a YAML file and builds a catalog
func LoadCatalog(filename string) (*Catalog, error) {
	config, err := LoadItemsFromYAML(filename)
	if err != nil {
		return nil, err
	}
	return NewCatalog(config)
}

func createItemFromDefinition(id string, def ItemDefinition) (*Item, error) {
	itemType := StringToItemType(def.Type)

	maxStack := def.MaxStack
	switch {
	case maxStack < 0:
		return nil, fmt.Errorf("item %q: max_stack cannot be negative", id)
	case maxStack == 0 && itemType.IsStackable():
		maxStack = DefaultMaxStack
	case maxStack == 0:
		maxStack = 1
	}

	name := def.Name
	if name == "" {
		name = id
	}

	return &Item{
		ID:          id,
		Name:        name,
		Description: def.Description,
		Type:        itemType,
		MaxStack:    maxStack,
		Value:       def.Value,
	}, nil
}

// Get returns the item with the given ID
func (c *Catalog) Get(id string) (*Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Count returns the number of catalog entries
func (c *Catalog) Count() int {
	return len(c.items)
}

// IDs returns every item ID, sorted
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
