package test

import (
	"fmt"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/testclient"
)

// =============================================================================
// Group 3: Inventory
// =============================================================================

// TestInventoryGather tests that gather events add items to the bag
func TestInventoryGather(serverAddr string) TestResult {
	const testName = "Inventory Gather"

	client, err := testclient.NewTestClient(uniqueName("inv"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	logAction(testName, "Gathering two maple logs...")
	if err := gather(client, "maple_log", 2); err != nil {
		return fail(testName, "Gather failed: %v", err)
	}

	inv, ok := inventory(client)
	if !ok {
		return fail(testName, "No inventory reply")
	}
	count := itemCount(inv, "maple_log")
	logResult(testName, count == 2, fmt.Sprintf("maple_log = %d", count))
	if count != 2 {
		return fail(testName, "Expected 2 maple_log, got %v", inv)
	}

	return pass(testName, "Gathered items landed in the bag")
}

// TestInventoryUnknownItem tests that events for unknown items are rejected
func TestInventoryUnknownItem(serverAddr string) TestResult {
	const testName = "Inventory Unknown Item"

	client, err := testclient.NewTestClient(uniqueName("unknown"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	client.ClearMessages()
	client.Event("gather", "gold_bar", 1)
	msg, ok := client.WaitForType("error", waitTimeout)
	if !ok || msg.String("code") != "unknown_item" {
		return fail(testName, "Expected unknown_item, got %v", client.GetMessages())
	}

	return pass(testName, "Unknown item rejected")
}

// TestInventoryDeliverMissing tests that delivering an item the player does
// not carry is refused
func TestInventoryDeliverMissing(serverAddr string) TestResult {
	const testName = "Inventory Deliver Missing"

	client, err := testclient.NewTestClient(uniqueName("deliver"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	client.ClearMessages()
	client.Event("deliver", "syrup_jar", 1)
	msg, ok := client.WaitForType("notify", waitTimeout)
	if !ok || msg.String("kind") != "error" {
		return fail(testName, "Expected an error notice, got %v", client.GetMessages())
	}

	return pass(testName, "Delivery without the item refused")
}

// TestTradeOption tests that a trade option takes items and pays out
func TestTradeOption(serverAddr string) TestResult {
	const testName = "Trade Option"

	client, err := testclient.NewTestClient(uniqueName("trade"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if err := completeFirstLogs(client); err != nil {
		return fail(testName, "first_logs failed: %v", err)
	}

	logAction(testName, "Selling oak to the miller...")
	if _, err := choose(client, "miller", "Is the saw free?", "Sell you some oak instead?"); err != nil {
		return fail(testName, "Trade failed: %v", err)
	}

	inv, ok := inventory(client)
	if !ok {
		return fail(testName, "No inventory reply")
	}
	oak := itemCount(inv, "oak_log")
	currency := inv.Int("currency")
	logResult(testName, oak == 1 && currency == 31, fmt.Sprintf("oak_log = %d, currency = %d", oak, currency))
	if oak != 1 || currency != 31 {
		return fail(testName, "Expected 1 oak_log and 31 coins, got %v", inv)
	}

	return pass(testName, "Trade took two logs and paid six coins")
}
