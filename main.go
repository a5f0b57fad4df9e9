package main

import (
	"fmt"

	"github.com/kiwi-sherbet/loco-mujoco/commands"
)

// main entry point to the locomotion tools
func main() {
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
	}
}
