package test

import (
	"fmt"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/testclient"
)

// =============================================================================
// Group 1: Connection
// =============================================================================

// TestBasicConnection tests that a client can greet the server and get a welcome
func TestBasicConnection(serverAddr string) TestResult {
	const testName = "Basic Connection"

	name := uniqueName("conn")
	logAction(testName, fmt.Sprintf("Connecting as '%s'...", name))
	client, err := testclient.NewTestClient(name, serverAddr)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	welcome := client.GetMessages()[0]
	ok := welcome.String("player") == name && len(welcome.Strings("active")) == 0
	logResult(testName, ok, fmt.Sprintf("Welcome: %v", welcome))
	if !ok {
		return fail(testName, "Unexpected welcome for a new player: %v", welcome)
	}

	return pass(testName, "Connected and welcomed with an empty quest log")
}

// TestBadHello tests that a first message other than hello is rejected
func TestBadHello(serverAddr string) TestResult {
	const testName = "Bad Hello"

	client, err := testclient.Dial(serverAddr)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	logAction(testName, "Sending interact before hello...")
	client.Interact("foreman")

	msg, ok := client.WaitForType("error", waitTimeout)
	if !ok || msg.String("code") != "bad_hello" {
		return fail(testName, "Expected bad_hello, got: %v", client.GetMessages())
	}
	logResult(testName, true, "Rejected with bad_hello")

	return pass(testName, "Connection without hello was rejected")
}

// TestDuplicatePlayer tests that a player ID can only be connected once
func TestDuplicatePlayer(serverAddr string) TestResult {
	const testName = "Duplicate Player"

	name := uniqueName("dup")
	first, err := testclient.NewTestClient(name, serverAddr)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer first.Close()

	logAction(testName, "Connecting a second time with the same ID...")
	second, err := testclient.NewTestClient(name, serverAddr)
	if err == nil {
		second.Close()
		return fail(testName, "Second connection for %s was accepted", name)
	}
	logResult(testName, true, err.Error())

	return pass(testName, "Second connection rejected")
}

// TestUnknownMessage tests that unknown message types keep the session open
func TestUnknownMessage(serverAddr string) TestResult {
	const testName = "Unknown Message"

	client, err := testclient.NewTestClient(uniqueName("unk"), serverAddr)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	client.ClearMessages()
	client.Send(map[string]any{"type": "dance"})
	msg, ok := client.WaitForType("error", waitTimeout)
	if !ok || msg.String("code") != "unknown_type" {
		return fail(testName, "Expected unknown_type, got: %v", client.GetMessages())
	}

	if _, ok := inventory(client); !ok {
		return fail(testName, "Session stopped responding after an unknown message")
	}

	return pass(testName, "Unknown message rejected, session still open")
}
