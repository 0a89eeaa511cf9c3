package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rosettalab/xlate/internal/lang"
	"github.com/rosettalab/xlate/internal/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Check that source files match their extension's language",
	Long: `Walk a directory of source files and classify each file's contents.
Files whose detected language disagrees with their extension are reported.
Useful for vetting a corpus of translation examples.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateRun(dir string) error {
	type mismatch struct {
		path     string
		expected string
		detected string
	}

	var checked int
	var mismatches []mismatch

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		expected := lang.DetectByExtension(d.Name())
		if expected == "" {
			ui.VerboseLog("skip %s (unrecognized extension)", path)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		checked++
		detected := lang.Detect(string(data))
		if detected != expected {
			mismatches = append(mismatches, mismatch{path: path, expected: expected, detected: detected})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if checked == 0 {
		ui.Warning("No recognizable source files under %s", dir)
		return nil
	}

	if len(mismatches) == 0 {
		ui.Success("%d files checked, all consistent", checked)
		return nil
	}

	table := ui.Table([]string{"FILE", "EXTENSION SAYS", "CONTENT LOOKS LIKE"})
	for _, m := range mismatches {
		table.Append([]string{m.path, m.expected, output.Yellow(m.detected)})
	}
	if err := table.Render(); err != nil {
		return err
	}
	ui.Error("%d of %d files mismatched", len(mismatches), checked)
	return fmt.Errorf("%d mismatched files", len(mismatches))
}
