package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"veld/internal/typedef"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new type definition file",
	Long: `Initialize a directory with a starter veld.toml declaring a small set of
types. If [path|name] is omitted, initializes the current directory. If a
non-existing name is provided, a directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

const starterDefs = `[package]
name = "%s"

[[protocol]]
name = "Printable"

[[struct]]
name = "Point"
fields = [
  { name = "x", type = "Int64" },
  { name = "y", type = "Int64" },
]

[[conformance]]
type = "Point"
protocol = "Printable"
`

func runInit(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	path := filepath.Join(target, typedef.DefFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	name := filepath.Base(target)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "veld-types"
	}
	if err := os.WriteFile(path, fmt.Appendf(nil, starterDefs, name), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
	return nil
}
