// consolectl - operator CLI for the bot admin console.
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/bot-console/internal/cli/commands"
	"github.com/ashureev/bot-console/internal/cli/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError(os.Stderr, "%v", err)
		fmt.Fprintln(os.Stderr, "\nRun 'consolectl --help' for usage.")
		os.Exit(1)
	}
}
