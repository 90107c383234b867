package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"veld/internal/demangle"
	"veld/internal/meta"
)

var layoutFile string

func init() {
	layoutCmd.Flags().StringVarP(&layoutFile, "file", "f", "", "definition file (default: nearest veld.toml)")
}

var layoutCmd = &cobra.Command{
	Use:   "layout <type>",
	Short: "Show the field-by-field layout of one declared type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupColor(cmd)
		var defs []string
		if layoutFile != "" {
			defs = []string{layoutFile}
		}
		l, err := openDefs(defs)
		if err != nil {
			return err
		}
		d, ok := l.Index.Types[args[0]]
		if !ok {
			return fmt.Errorf("unknown type %q in %s", args[0], l.Path)
		}
		out := cmd.OutOrStdout()
		title := color.New(color.Bold)
		offsetColor := color.New(color.FgCyan)

		title.Fprintf(out, "%s\n", demangle.Name(d))
		fmt.Fprintf(out, "kind %s  size %d  align %d  stride %d\n", d.Kind, d.Ops.Size, d.Ops.Align, d.Ops.Stride)
		fmt.Fprintf(out, "pod %v  bitwise-takable %v  inline %v\n", d.Ops.POD, d.Ops.BitwiseTakable, d.Ops.Inline)

		switch d.Kind {
		case meta.KindStruct:
			for i, f := range d.Struct.Fields {
				fmt.Fprintf(out, "  %s %s: %s\n",
					offsetColor.Sprintf("+%-4d", d.Struct.Offsets[i]), f.Name, demangle.Name(f.Type))
			}
		case meta.KindClass:
			if s := d.Superclass(); s != nil {
				fmt.Fprintf(out, "  super %s\n", s.Name)
			}
			fmt.Fprintf(out, "  instance size %d  align %d\n", d.Class.InstanceSize, d.Class.InstanceAlign)
			for i, f := range d.Class.Fields {
				fmt.Fprintf(out, "  %s %s: %s\n",
					offsetColor.Sprintf("+%-4d", d.Class.FieldOffsets[i]), f.Name, demangle.Name(f.Type))
			}
		case meta.KindEnum:
			fmt.Fprintf(out, "  payload offset %d\n", d.Enum.PayloadOffset)
			for i, c := range d.Enum.Cases {
				if p := d.Enum.PayloadTypes[i]; p != nil {
					fmt.Fprintf(out, "  case %s(%s)\n", c, demangle.Name(p))
				} else {
					fmt.Fprintf(out, "  case %s\n", c)
				}
			}
		}
		return nil
	},
}
