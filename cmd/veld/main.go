package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"veld/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "veld",
	Short: "Veld runtime type system toolchain",
	Long:  `Veld inspects type definitions with the same descriptors, layouts and casts the runtime uses`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
