package main

import "github.com/agentic-research/ironledger/cmd"

func main() {
	cmd.Execute()
}
