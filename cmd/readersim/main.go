package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "readersim",
		Short: "Drive the cassette reader engine through scripted scenarios",
		Long: `readersim runs the five-channel reader engine in-process with simulated
cassettes and prints every state transition. It needs no robot or module
server, which makes it handy for checking workflow changes by eye.`,
	}

	rootCmd.AddCommand(scenarioCmd())
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
