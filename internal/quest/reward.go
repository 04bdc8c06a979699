package quest

// Player-facing messages for failed grants and trades.
const (
	msgInventoryFull   = "Not enough inventory space."
	msgMissingItems    = "You don't have the required items."
	msgNotEnoughGold   = "You can't afford that."
	msgRewardUnpayable = "The reward could not be granted."
)

// GrantRewardAtomic pays out r to p. Either every part of the reward is
// applied or none is: capacity is checked up front when the player can
// report it, and any item, skill point or currency step that still fails
// rolls back the steps before it.
func GrantRewardAtomic(p Player, r Reward) bool {
	items := positiveStacks(r.Items)

	if checker, ok := p.(CapacityChecker); ok && len(items) > 0 && !checker.CanAddItems(items) {
		p.Notify(msgInventoryFull, NotifyError)
		return false
	}

	added, ok := addStacks(p, items)
	if !ok {
		p.Notify(msgInventoryFull, NotifyError)
		return false
	}

	if r.SkillPoints != 0 {
		holder, ok := p.(SkillPointHolder)
		if !ok || !holder.AddSkillPoints(r.SkillPoints) {
			removeStacks(p, added)
			p.Notify(msgRewardUnpayable, NotifyError)
			return false
		}
	}

	if r.Currency != 0 && !p.AdjustCurrency(r.Currency) {
		if r.SkillPoints != 0 {
			p.(SkillPointHolder).AddSkillPoints(-r.SkillPoints)
		}
		removeStacks(p, added)
		p.Notify(msgRewardUnpayable, NotifyError)
		return false
	}

	return true
}

// Transact performs a quest-authored trade: take is removed from the
// player, give is added, and currency is adjusted (negative to charge).
// Nothing changes unless every step succeeds.
func Transact(p Player, take, give []ItemStack, currency int) bool {
	take = positiveStacks(take)
	give = positiveStacks(give)

	for _, st := range take {
		if !p.HasItem(st.Item, st.Quantity) {
			p.Notify(msgMissingItems, NotifyError)
			return false
		}
	}
	if checker, ok := p.(CapacityChecker); ok && len(give) > 0 && !checker.CanAddItems(give) {
		p.Notify(msgInventoryFull, NotifyError)
		return false
	}

	removed, ok := removeStacks(p, take)
	if !ok {
		p.Notify(msgMissingItems, NotifyError)
		return false
	}

	added, ok := addStacks(p, give)
	if !ok {
		addStacks(p, removed)
		p.Notify(msgInventoryFull, NotifyError)
		return false
	}

	if currency != 0 && !p.AdjustCurrency(currency) {
		removeStacks(p, added)
		addStacks(p, removed)
		p.Notify(msgNotEnoughGold, NotifyError)
		return false
	}

	return true
}

// addStacks adds stacks in order. On failure it removes what it added and
// returns ok=false; on success it returns the stacks added.
func addStacks(p Player, stacks []ItemStack) ([]ItemStack, bool) {
	added := make([]ItemStack, 0, len(stacks))
	for _, st := range stacks {
		if !p.AddItem(st.Item, st.Quantity) {
			removeStacks(p, added)
			return nil, false
		}
		added = append(added, st)
	}
	return added, true
}

// removeStacks removes stacks in reverse order. On failure it restores what
// it removed and returns ok=false.
func removeStacks(p Player, stacks []ItemStack) ([]ItemStack, bool) {
	removed := make([]ItemStack, 0, len(stacks))
	for i := len(stacks) - 1; i >= 0; i-- {
		st := stacks[i]
		if !p.RemoveItem(st.Item, st.Quantity) {
			for _, back := range removed {
				p.AddItem(back.Item, back.Quantity)
			}
			return nil, false
		}
		removed = append(removed, st)
	}
	return removed, true
}

func positiveStacks(stacks []ItemStack) []ItemStack {
	out := make([]ItemStack, 0, len(stacks))
	for _, st := range stacks {
		if st.Item != "" && st.Quantity > 0 {
			out = append(out, st)
		}
	}
	return out
}
