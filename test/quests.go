package test

import (
	"fmt"
	"time"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/testclient"
)

// =============================================================================
// Group 2: Quests & Dialogue
// =============================================================================

// TestQuestExitOption tests that an exit option closes dialogue without effects
func TestQuestExitOption(serverAddr string) TestResult {
	const testName = "Quest Exit Option"

	client, err := testclient.NewTestClient(uniqueName("exit"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	logAction(testName, "Declining the foreman's offer...")
	reply, err := choose(client, "foreman", "Got any work for me?", "Not now.")
	if err != nil {
		return fail(testName, "Dialogue failed: %v", err)
	}
	if reply.Type() != "dialogueClose" {
		return fail(testName, "Expected dialogueClose, got %v", reply)
	}

	menu, err := choose(client, "foreman")
	if err != nil {
		return fail(testName, "Dialogue failed: %v", err)
	}
	if _, ok := findOption(menu, "Got any work for me?"); !ok {
		return fail(testName, "Offer should still be available, got %v", menu.Options())
	}
	logResult(testName, true, "Offer still available after declining")

	return pass(testName, "Exit option left the quest untouched")
}

// TestQuestAcceptAndTurnIn tests the full first_logs flow and its rewards
func TestQuestAcceptAndTurnIn(serverAddr string) TestResult {
	const testName = "Quest Accept And Turn In"

	client, err := testclient.NewTestClient(uniqueName("turnin"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	logAction(testName, "Accepting first_logs...")
	if _, err := choose(client, "foreman", "Got any work for me?", "On it."); err != nil {
		return fail(testName, "Accept failed: %v", err)
	}
	if !waitQuestState(client, "first_logs", "active") {
		return fail(testName, "No active questUpdate after accepting")
	}

	logAction(testName, "Gathering oak logs and turning in...")
	if err := gather(client, "oak_log", 3); err != nil {
		return fail(testName, "Gather failed: %v", err)
	}
	if _, err := choose(client, "foreman", "Here are your logs."); err != nil {
		return fail(testName, "Turn-in failed: %v", err)
	}
	if !waitQuestState(client, "first_logs", "completed") {
		return fail(testName, "No completed questUpdate after turn-in")
	}

	inv, ok := inventory(client)
	if !ok {
		return fail(testName, "No inventory reply")
	}
	rewarded := inv.Int("currency") == 25 && inv.Int("skillPoints") == 1 && itemCount(inv, "iron_axe") == 1
	logResult(testName, rewarded, fmt.Sprintf("Inventory: %v", inv))
	if !rewarded {
		return fail(testName, "Rewards not granted: %v", inv)
	}

	return pass(testName, "Quest accepted, progressed, completed and rewarded")
}

// TestQuestStaleOption tests that selecting an option that is no longer
// offered is rejected and the current options are re-sent
func TestQuestStaleOption(serverAddr string) TestResult {
	const testName = "Quest Stale Option"

	client, err := testclient.NewTestClient(uniqueName("stale"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	menu, err := choose(client, "foreman", "Got any work for me?")
	if err != nil {
		return fail(testName, "Dialogue failed: %v", err)
	}
	acceptID, ok := findOption(menu, "On it.")
	if !ok {
		return fail(testName, "Accept option missing: %v", menu.Options())
	}
	if err := client.Select("foreman", acceptID); err != nil {
		return fail(testName, "Select failed: %v", err)
	}
	if !waitQuestState(client, "first_logs", "active") {
		return fail(testName, "Quest did not start")
	}

	logAction(testName, "Selecting the accept option a second time...")
	client.ClearMessages()
	client.Select("foreman", acceptID)
	msg, ok := client.WaitForType("error", waitTimeout)
	if !ok || msg.String("code") != "stale_option" {
		return fail(testName, "Expected stale_option, got %v", client.GetMessages())
	}
	if _, ok := client.WaitForType("dialogue", waitTimeout); !ok {
		return fail(testName, "Root options were not re-sent")
	}

	return pass(testName, "Stale option rejected and options re-sent")
}

// TestQuestPrerequisites tests that gated quests stay hidden until their
// prerequisites are completed
func TestQuestPrerequisites(serverAddr string) TestResult {
	const testName = "Quest Prerequisites"

	client, err := testclient.NewTestClient(uniqueName("prereq"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	menu, err := choose(client, "miller")
	if err != nil {
		return fail(testName, "Dialogue failed: %v", err)
	}
	if len(menu.Options()) != 0 {
		return fail(testName, "Miller offered options before first_logs: %v", menu.Options())
	}

	if err := completeFirstLogs(client); err != nil {
		return fail(testName, "first_logs failed: %v", err)
	}

	menu, err = choose(client, "miller")
	if err != nil {
		return fail(testName, "Dialogue failed: %v", err)
	}
	if _, ok := findOption(menu, "Is the saw free?"); !ok {
		return fail(testName, "Miller offer missing after first_logs: %v", menu.Options())
	}

	return pass(testName, "plank_order unlocked by first_logs")
}

// TestQuestPersistence tests that quest state survives a reconnect
func TestQuestPersistence(serverAddr string) TestResult {
	const testName = "Quest Persistence"

	name := uniqueName("persist")
	client, err := testclient.NewTestClient(name, serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}

	if _, err := choose(client, "foreman", "Got any work for me?", "On it."); err != nil {
		client.Close()
		return fail(testName, "Accept failed: %v", err)
	}
	if err := gather(client, "oak_log", 2); err != nil {
		client.Close()
		return fail(testName, "Gather failed: %v", err)
	}
	if !waitQuestState(client, "first_logs", "active") {
		client.Close()
		return fail(testName, "Quest did not start")
	}
	client.Close()

	logAction(testName, "Reconnecting...")
	var welcome testclient.Message
	for attempt := 0; attempt < 10; attempt++ {
		client, err = testclient.NewTestClient(name, serverAddr)
		if err == nil {
			welcome = client.GetMessages()[0]
			break
		}
		// The old session may still be flushing its save.
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return fail(testName, "Reconnect failed: %v", err)
	}
	defer client.Close()

	active := welcome.Strings("active")
	logResult(testName, len(active) == 1, fmt.Sprintf("Active after reconnect: %v", active))
	if len(active) != 1 || active[0] != "first_logs" {
		return fail(testName, "Expected first_logs active, got %v", active)
	}

	return pass(testName, "Active quest restored on reconnect")
}

// TestQuestAlerts tests that NPC alerts follow the player's spawn state
func TestQuestAlerts(serverAddr string) TestResult {
	const testName = "Quest Alerts"

	client, err := testclient.NewTestClient(uniqueName("alert"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := choose(client, "foreman", "Got any work for me?", "On it."); err != nil {
		return fail(testName, "Accept failed: %v", err)
	}

	logAction(testName, "Spawning into the world...")
	client.ClearMessages()
	client.Send(map[string]any{"type": "spawn"})
	msg, ok := client.WaitFor(func(m testclient.Message) bool {
		return m.Type() == "addEntityAlert" && m.String("className") == "foreman"
	}, waitTimeout)
	if !ok {
		return fail(testName, "No foreman alert after spawn: %v", client.GetMessages())
	}
	logResult(testName, true, fmt.Sprintf("Alert: %v", msg))

	return pass(testName, "Foreman alert shown on spawn")
}

// TestQuestTalkObjective tests that talking to an NPC advances a talk objective
func TestQuestTalkObjective(serverAddr string) TestResult {
	const testName = "Quest Talk Objective"

	client, err := testclient.NewTestClient(uniqueName("talk"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if err := completeFirstLogs(client); err != nil {
		return fail(testName, "first_logs failed: %v", err)
	}
	if _, err := choose(client, "miller", "Is the saw free?", "Deal."); err != nil {
		return fail(testName, "Accept failed: %v", err)
	}

	logAction(testName, "Reporting to the foreman and sawing planks...")
	if _, err := choose(client, "foreman"); err != nil {
		return fail(testName, "Foreman dialogue failed: %v", err)
	}
	if err := client.Event("craft", "plank", 4); err != nil {
		return fail(testName, "Craft failed: %v", err)
	}
	if _, err := choose(client, "miller", "Four planks, as ordered."); err != nil {
		return fail(testName, "Turn-in failed: %v", err)
	}
	if !waitQuestState(client, "plank_order", "completed") {
		return fail(testName, "plank_order did not complete")
	}

	return pass(testName, "Talk and craft objectives completed plank_order")
}

// TestQuestHandInOnce tests that a hand-in option disappears once the
// delivery objective is met
func TestQuestHandInOnce(serverAddr string) TestResult {
	const testName = "Quest Hand In Once"

	client, err := testclient.NewTestClient(uniqueName("handin"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if err := completeFirstLogs(client); err != nil {
		return fail(testName, "first_logs failed: %v", err)
	}
	if _, err := choose(client, "tapper", "Need a hand?", "I'll fetch them."); err != nil {
		return fail(testName, "Accept failed: %v", err)
	}
	if err := gather(client, "maple_sap", 4); err != nil {
		return fail(testName, "Gather failed: %v", err)
	}

	logAction(testName, "Handing in the sap...")
	menu, err := choose(client, "tapper", "Here's your sap.")
	if err != nil {
		return fail(testName, "Hand-in failed: %v", err)
	}
	if _, again := findOption(menu, "Here's your sap."); again {
		return fail(testName, "Hand-in still offered after delivery: %v", menu.Options())
	}
	if _, ok := findOption(menu, "What do I get?"); !ok {
		return fail(testName, "Reward option missing: %v", menu.Options())
	}

	inv, ok := inventory(client)
	if !ok {
		return fail(testName, "No inventory reply")
	}
	sap := itemCount(inv, "maple_sap")
	logResult(testName, sap == 2, fmt.Sprintf("maple_sap = %d", sap))
	if sap != 2 {
		return fail(testName, "Expected 2 maple_sap left, got %v", inv)
	}

	return pass(testName, "Sap handed in exactly once")
}
