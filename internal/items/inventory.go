package items

import "sort"

// Inventory is a slot-based bag with a currency purse and skill points.
// It belongs to one player session and is not safe for concurrent use.
type Inventory struct {
	catalog     *Catalog
	slots       []Stack // Empty slots have ItemID ""
	currency    int
	skillPoints int
}

// NewInventory creates an empty inventory with the given number of slots
func NewInventory(catalog *Catalog, capacity int) *Inventory {
	return &Inventory{
		catalog: catalog,
		slots:   make([]Stack, capacity),
	}
}

// Capacity returns the number of slots
func (inv *Inventory) Capacity() int {
	return len(inv.slots)
}

// FreeSlots returns the number of empty slots
func (inv *Inventory) FreeSlots() int {
	free := 0
	for _, s := range inv.slots {
		if s.ItemID == "" {
			free++
		}
	}
	return free
}

// Count returns how many of an item are held across all slots
func (inv *Inventory) Count(itemID string) int {
	total := 0
	for _, s := range inv.slots {
		if s.ItemID == itemID {
			total += s.Quantity
		}
	}
	return total
}

// HasItem checks if at least quantity of the item is held
func (inv *Inventory) HasItem(itemID string, quantity int) bool {
	return quantity > 0 && inv.Count(itemID) >= quantity
}

// CanAdd reports whether every stack fits at once. Unknown items never fit.
func (inv *Inventory) CanAdd(stacks []Stack) bool {
	slots := make([]Stack, len(inv.slots))
	copy(slots, inv.slots)
	for _, st := range stacks {
		if !inv.place(slots, st) {
			return false
		}
	}
	return true
}

// AddItem adds quantity of an item, topping up partial stacks before using
// empty slots. Nothing changes if it does not all fit.
func (inv *Inventory) AddItem(itemID string, quantity int) bool {
	st := Stack{ItemID: itemID, Quantity: quantity}
	slots := make([]Stack, len(inv.slots))
	copy(slots, inv.slots)
	if !inv.place(slots, st) {
		return false
	}
	inv.slots = slots
	return true
}

// place puts st into slots in place. Returns false if it does not fit.
func (inv *Inventory) place(slots []Stack, st Stack) bool {
	if st.Quantity <= 0 {
		return false
	}
	item, ok := inv.catalog.Get(st.ItemID)
	if !ok {
		return false
	}

	remaining := st.Quantity
	for i := range slots {
		if remaining == 0 {
			break
		}
		if slots[i].ItemID != st.ItemID || slots[i].Quantity >= item.MaxStack {
			continue
		}
		n := min(item.MaxStack-slots[i].Quantity, remaining)
		slots[i].Quantity += n
		remaining -= n
	}
	for i := range slots {
		if remaining == 0 {
			break
		}
		if slots[i].ItemID != "" {
			continue
		}
		n := min(item.MaxStack, remaining)
		slots[i] = Stack{ItemID: st.ItemID, Quantity: n}
		remaining -= n
	}
	return remaining == 0
}

// RemoveItem removes quantity of an item, draining the smallest stacks
// first. Nothing changes if not enough is held.
func (inv *Inventory) RemoveItem(itemID string, quantity int) bool {
	if !inv.HasItem(itemID, quantity) {
		return false
	}

	var idx []int
	for i, s := range inv.slots {
		if s.ItemID == itemID {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return inv.slots[idx[a]].Quantity < inv.slots[idx[b]].Quantity
	})

	remaining := quantity
	for _, i := range idx {
		n := min(inv.slots[i].Quantity, remaining)
		inv.slots[i].Quantity -= n
		if inv.slots[i].Quantity == 0 {
			inv.slots[i] = Stack{}
		}
		remaining -= n
		if remaining == 0 {
			break
		}
	}
	return true
}

// Currency returns the purse balance
func (inv *Inventory) Currency() int {
	return inv.currency
}

// AdjustCurrency adds amount (negative to spend). Fails without change if
// the balance would go negative.
func (inv *Inventory) AdjustCurrency(amount int) bool {
	if inv.currency+amount < 0 {
		return false
	}
	inv.currency += amount
	return true
}

// SkillPoints returns the unspent skill points
func (inv *Inventory) SkillPoints() int {
	return inv.skillPoints
}

// AddSkillPoints adds points (negative to take back). Fails without change
// if the total would go negative.
func (inv *Inventory) AddSkillPoints(points int) bool {
	if inv.skillPoints+points < 0 {
		return false
	}
	inv.skillPoints += points
	return true
}

// Contents returns the held items merged by ID, sorted by ID
func (inv *Inventory) Contents() []Stack {
	totals := make(map[string]int)
	for _, s := range inv.slots {
		if s.ItemID != "" {
			totals[s.ItemID] += s.Quantity
		}
	}
	out := make([]Stack, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Stack{ItemID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
