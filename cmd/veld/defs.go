package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"veld/internal/conformance"
	"veld/internal/heap"
	"veld/internal/meta"
	"veld/internal/typedef"
)

const noVeldTomlMessage = "no veld.toml found\nplease specify the definition file explicitly, e.g.:\n  veld inspect path/to/veld.toml"

// loaded bundles a materialized definition file with the universe it was
// built into.
type loaded struct {
	Path     string
	Universe *meta.Universe
	Confs    *conformance.Cache
	Index    *typedef.Index
}

// openDefs resolves the definition file from the command argument or by
// walking up from the working directory, then builds it.
func openDefs(args []string) (*loaded, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		p, ok, err := typedef.Find(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s", noVeldTomlMessage)
		}
		path = p
	}

	u := meta.NewUniverse(heap.NewMem(), nil)
	confs := conformance.New(nil)
	idx, err := typedef.Load(u, confs, path)
	if err != nil {
		return nil, err
	}
	return &loaded{Path: path, Universe: u, Confs: confs, Index: idx}, nil
}

// setupColor applies the persistent --color flag before any styled output.
func setupColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
