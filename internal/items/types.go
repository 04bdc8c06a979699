package items

// ItemType represents the category of an item
type ItemType int

const (
	Misc ItemType = iota
	Material
	Tool
	Consumable
	QuestItem
)

// String returns the string representation of an ItemType
func (t ItemType) String() string {
	switch t {
	case Material:
		return "material"
	case Tool:
		return "tool"
	case Consumable:
		return "consumable"
	case QuestItem:
		return "quest"
	case Misc:
		return "misc"
	default:
		return "unknown"
	}
}

// StringToItemType converts a string to an ItemType
func StringToItemType(typeStr string) ItemType {
	switch typeStr {
	case "material":
		return Material
	case "tool":
		return Tool
	case "consumable":
		return Consumable
	case "quest":
		return QuestItem
	default:
		return Misc
	}
}

// IsStackable returns true if more than one of the type fits in a slot by default
func (t ItemType) IsStackable() bool {
	return t != Tool
}
