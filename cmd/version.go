package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// versionCmd prints the installed fantasyvm binary's version; it carries
// no information about a loaded program's own format, since the binary
// format has no version field (SPEC_FULL.md §6).
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the currently installed fantasyvm version",
	Long:  "Run `fantasyvm version` to print the version of the fantasyvm binary itself. Program .bin files carry no version field of their own.",
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	if len(args) != 0 {
		fmt.Println("version takes no arguments; did you mean `fantasyvm run <path>`?")
		os.Exit(1)
	}
	fmt.Println(currentReleaseVersion)
}
