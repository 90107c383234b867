package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"veld/internal/meta"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [veld.toml]",
	Short: "List every declared type with its computed ABI",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupColor(cmd)
		l, err := openDefs(args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		header := color.New(color.Bold)
		kindColor := color.New(color.FgCyan)
		podColor := color.New(color.FgGreen)
		refColor := color.New(color.FgYellow)

		header.Fprintf(out, "package %s (%s)\n", l.Index.Package, l.Path)
		nameWidth := 4
		for _, name := range l.Index.Order {
			if w := runewidth.StringWidth(name); w > nameWidth {
				nameWidth = w
			}
		}
		fmt.Fprintf(out, "%s  %-10s %6s %6s %6s  %s\n",
			runewidth.FillRight("name", nameWidth), "kind", "size", "align", "stride", "traits")

		for _, name := range l.Index.Order {
			d := l.Index.Types[name]
			traits := ""
			switch {
			case d.Ops.POD:
				traits = podColor.Sprint("pod")
			case d.Kind.IsReference():
				traits = refColor.Sprint("refcounted")
			}
			fmt.Fprintf(out, "%s  %s %6d %6d %6d  %s\n",
				runewidth.FillRight(name, nameWidth),
				kindColor.Sprint(runewidth.FillRight(kindLabel(d), 10)),
				d.Ops.Size, d.Ops.Align, d.Ops.Stride, traits)
		}
		return nil
	},
}

func kindLabel(d *meta.Descriptor) string {
	return d.Kind.String()
}
