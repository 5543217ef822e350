package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// currentReleaseVersion is used to print the version the user currently has downloaded
const currentReleaseVersion = "v0.1.0"

// rootCmd is the base for all commands.
var rootCmd = &cobra.Command{
	Use:   "fantasyvm [command]",
	Short: "fantasyvm is a fantasy-computer virtual machine",
	Long:  "fantasyvm loads a bytecode program and runs it against a tiny 16-bit register machine with a text and pixel display.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return errors.New("requires a subcommand: run, inspect, or version")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Unknown command %q. Try one of: run, inspect, version (see `fantasyvm help`)\n", args[0])
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
}

// Execute runs fantasyvm according to the user's command/subcommand/flags
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
