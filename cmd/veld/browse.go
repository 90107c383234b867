package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"veld/internal/ui"
)

var browseCmd = &cobra.Command{
	Use:   "browse [veld.toml]",
	Short: "Browse declared types interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdout) {
			return fmt.Errorf("browse needs a terminal; use inspect for plain output")
		}
		l, err := openDefs(args)
		if err != nil {
			return err
		}
		entries := make([]ui.Entry, 0, len(l.Index.Order))
		for _, name := range l.Index.Order {
			entries = append(entries, ui.Entry{Name: name, Desc: l.Index.Types[name]})
		}
		model := ui.NewBrowserModel(l.Index.Package, entries)
		_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	},
}
