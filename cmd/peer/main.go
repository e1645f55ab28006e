package main

import "github.com/INDA25PlusPlus/nhg-net/cmd/peer/command"

func main() {
	command.Execute()
}
