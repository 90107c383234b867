package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veld/internal/observ"
	"veld/internal/snapshot"
)

var dumpOutput string

func init() {
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "veld.mp", "snapshot output path")
}

var dumpCmd = &cobra.Command{
	Use:   "dump [veld.toml]",
	Short: "Write a binary snapshot of every built descriptor",
	Long: `Dump builds the definition file and serializes the resulting descriptor
table, so layouts can be diffed between toolchain versions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timer := observ.NewTimer()

		build := timer.Start("build")
		l, err := openDefs(args)
		if err != nil {
			return err
		}
		build.Stop(len(l.Index.Order), "types")

		capture := timer.Start("capture")
		p, err := snapshot.Capture(l.Universe, l.Index.Package)
		if err != nil {
			return err
		}
		capture.Stop(len(p.Types), "records")

		write := timer.Start("write")
		n, err := snapshot.Write(dumpOutput, p)
		if err != nil {
			return err
		}
		write.Stop(n, "bytes")

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d descriptors to %s\n", len(p.Types), dumpOutput)
		}
		if timings, _ := cmd.Flags().GetBool("timings"); timings {
			fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
		}
		return nil
	},
}
