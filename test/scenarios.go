// Package test holds smoke scenarios run by cmd/testrunner against a live
// questd started with the shipped content in data/.
package test

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/testclient"
)

// uniqueCounter provides unique IDs for test players within a single run
var uniqueCounter uint64

// runTag keeps player IDs from colliding with saves left by earlier runs
var runTag = fmt.Sprintf("%x", time.Now().Unix()%0xfffff^int64(os.Getpid()))

// uniqueName generates a player ID that has not been used before.
func uniqueName(base string) string {
	counter := atomic.AddUint64(&uniqueCounter, 1)
	return fmt.Sprintf("%s_%s_%d", base, runTag, counter)
}

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// waitTimeout bounds every wait for a server reply
const waitTimeout = 2 * time.Second

// TestResult represents the result of a test
type TestResult struct {
	Name    string
	Passed  bool
	Message string
}

func pass(name, msg string) TestResult {
	return TestResult{Name: name, Passed: true, Message: msg}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

// logAction logs a test action when verbose mode is enabled
func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

// logResult logs an expected vs actual result when verbose mode is enabled
func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

// =============================================================================
// Test Runner
// =============================================================================

// testEntry holds a test function and its name
type testEntry struct {
	Name string
	Func func(string) TestResult
}

// getAllTests returns all test entries in order
func getAllTests() []testEntry {
	return []testEntry{
		// Group 1: Connection
		{"Basic Connection", TestBasicConnection},
		{"Bad Hello", TestBadHello},
		{"Duplicate Player", TestDuplicatePlayer},
		{"Unknown Message", TestUnknownMessage},

		// Group 2: Quests & Dialogue
		{"Quest Exit Option", TestQuestExitOption},
		{"Quest Accept And Turn In", TestQuestAcceptAndTurnIn},
		{"Quest Stale Option", TestQuestStaleOption},
		{"Quest Prerequisites", TestQuestPrerequisites},
		{"Quest Persistence", TestQuestPersistence},
		{"Quest Alerts", TestQuestAlerts},
		{"Quest Talk Objective", TestQuestTalkObjective},
		{"Quest Hand In Once", TestQuestHandInOnce},

		// Group 3: Inventory
		{"Inventory Gather", TestInventoryGather},
		{"Inventory Unknown Item", TestInventoryUnknownItem},
		{"Inventory Deliver Missing", TestInventoryDeliverMissing},
		{"Trade Option", TestTradeOption},
	}
}

// RunAllTests runs all integration tests
func RunAllTests(serverAddr string) []TestResult {
	return RunFilteredTests(serverAddr, "")
}

// GetTestNames returns the names of all available tests
func GetTestNames() []string {
	tests := getAllTests()
	names := make([]string, len(tests))
	for i, t := range tests {
		names[i] = t.Name
	}
	return names
}

// RunFilteredTests runs only tests whose names contain the filter string (case-insensitive)
func RunFilteredTests(serverAddr string, filter string) []TestResult {
	results := make([]TestResult, 0)
	filterLower := strings.ToLower(filter)

	for _, t := range getAllTests() {
		if strings.Contains(strings.ToLower(t.Name), filterLower) {
			results = append(results, t.Func(serverAddr))
		}
	}

	return results
}

// PrintResults prints all test results in a formatted way
func PrintResults(results []TestResult) {
	passed := 0
	failed := 0

	fmt.Println("============================================================")
	fmt.Println("Integration Test Results")
	fmt.Println("============================================================")
	fmt.Println()

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		} else {
			passed++
		}
		fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Message)
	}

	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
	fmt.Println("------------------------------------------------------------")
}

// =============================================================================
// Dialogue Helpers
// =============================================================================

// findOption returns the ID of the option with the given text.
func findOption(msg testclient.Message, text string) (int, bool) {
	for _, opt := range msg.Options() {
		if opt.Text == text {
			return opt.ID, true
		}
	}
	return 0, false
}

// choose interacts with an NPC and follows a path of option texts, returning
// the server's reply to the last selection.
func choose(client *testclient.TestClient, npc string, path ...string) (testclient.Message, error) {
	client.ClearMessages()
	if err := client.Interact(npc); err != nil {
		return nil, err
	}
	menu, ok := client.WaitForType("dialogue", waitTimeout)
	if !ok {
		return nil, fmt.Errorf("no dialogue from %s", npc)
	}

	var reply testclient.Message
	for i, text := range path {
		id, ok := findOption(menu, text)
		if !ok {
			return nil, fmt.Errorf("option %q not offered by %s: %v", text, npc, menu.Options())
		}
		if err := client.Select(npc, id); err != nil {
			return nil, err
		}
		reply, ok = client.WaitFor(func(m testclient.Message) bool {
			switch m.Type() {
			case "dialogue", "dialogueClose", "error":
				return true
			}
			return false
		}, waitTimeout)
		if !ok {
			return nil, fmt.Errorf("no reply to %q", text)
		}
		if reply.Type() == "error" {
			return reply, fmt.Errorf("selecting %q: %s", text, reply.String("code"))
		}
		if i < len(path)-1 && reply.Type() != "dialogue" {
			return reply, fmt.Errorf("dialogue closed after %q", text)
		}
		menu = reply
	}
	return reply, nil
}

// waitQuestState waits for a questUpdate for questID in the given state.
func waitQuestState(client *testclient.TestClient, questID, state string) bool {
	_, ok := client.WaitFor(func(m testclient.Message) bool {
		return m.Type() == "questUpdate" && m.String("id") == questID && m.String("state") == state
	}, waitTimeout)
	return ok
}

// gather reports n gathered items.
func gather(client *testclient.TestClient, item string, n int) error {
	return client.Event("gather", item, n)
}

// inventory requests and returns the inventory message.
func inventory(client *testclient.TestClient) (testclient.Message, bool) {
	client.ClearMessages()
	if err := client.Send(map[string]any{"type": "inventory"}); err != nil {
		return nil, false
	}
	return client.WaitForType("inventory", waitTimeout)
}

// itemCount reads one item's quantity out of an inventory message.
func itemCount(msg testclient.Message, item string) int {
	raw, _ := msg["items"].([]any)
	total := 0
	for _, v := range raw {
		st, _ := v.(map[string]any)
		if st["item"] == item {
			q, _ := st["quantity"].(float64)
			total += int(q)
		}
	}
	return total
}

// completeFirstLogs runs the opening quest to completion.
func completeFirstLogs(client *testclient.TestClient) error {
	if _, err := choose(client, "foreman", "Got any work for me?", "On it."); err != nil {
		return err
	}
	if err := gather(client, "oak_log", 3); err != nil {
		return err
	}
	if _, err := choose(client, "foreman", "Here are your logs."); err != nil {
		return err
	}
	if !waitQuestState(client, "first_logs", "completed") {
		return fmt.Errorf("first_logs never completed")
	}
	return nil
}
