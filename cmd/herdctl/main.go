// Package main provides herdctl, a command line client for a running herd
// server.
//
// Usage:
//
//	herdctl [--server URL] [--json] <command> [args]
//
// Commands:
//
//	agents          - list active agents
//	spawn <species> - add agents
//	remove <agent>  - remove an agent, or every agent with --all
//	event <agent> <type> - send a pointer or menu event
//	sleep <agent>   - put an agent to sleep
//	wake <agent>    - wake an agent up
//	command <input> - run a slash command
//	status          - show the world status
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError("Error: %v", err)
		os.Exit(1)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
