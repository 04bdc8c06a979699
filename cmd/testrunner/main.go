package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jeremymiller99/lumberjacksim-sub000/test"
)

func main() {
	serverAddr := flag.String("addr", "ws://localhost:8080/ws", "questd WebSocket URL")
	verbose := flag.Bool("v", false, "Verbose output - show detailed actions for each test")
	filter := flag.String("run", "", "Only run tests whose name contains this string")
	list := flag.Bool("list", false, "List test names and exit")
	flag.Parse()

	if *list {
		for _, name := range test.GetTestNames() {
			fmt.Println(name)
		}
		return
	}

	test.Verbose = *verbose

	fmt.Printf("Running integration tests against %s\n", *serverAddr)
	fmt.Println("Make sure questd is running with the shipped data/ content!")
	if *verbose {
		fmt.Println("Verbose mode enabled - showing detailed test actions")
	}
	fmt.Println()

	results := test.RunFilteredTests(*serverAddr, *filter)
	test.PrintResults(results)

	// Exit with error code if any tests failed
	for _, result := range results {
		if !result.Passed {
			os.Exit(1)
		}
	}
}
