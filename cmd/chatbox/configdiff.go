package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/pmezard/go-difflib/difflib"
)

// computeDiff returns a unified diff between oldContent and newContent labeled
// with path. It is empty when the contents are equal.
func computeDiff(path, oldContent, newContent string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}

	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(diff error: %v)", err)
	}

	return result
}

func confirmOverwrite(path, diff string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewNote().Title("Changes to " + path).Description(diff),
		huh.NewConfirm().Title("Overwrite " + path + "?").Value(&ok),
	)).Run()
	return ok, err
}
