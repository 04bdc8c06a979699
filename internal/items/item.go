package items

import "fmt"

// DefaultMaxStack is used when a definition does not set max_stack.
const DefaultMaxStack = 20

// Item is a catalog entry
type Item struct {
	ID          string // Unique identifier from YAML key (e.g., "oak_log")
	Name        string
	Description string
	Type        ItemType
	MaxStack    int
	Value       int // Base price in currency
}

// String returns a short description for logs and tooling
func (i *Item) String() string {
	return fmt.Sprintf("%s (%s, stack %d)", i.Name, i.Type, i.MaxStack)
}

// Stack is a quantity of one item
type Stack struct {
	ItemID   string `json:"item"`
	Quantity int    `json:"quantity"`
}
