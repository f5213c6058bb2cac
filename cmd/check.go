package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/velocigo/velo/pkg/velo"
)

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Parse templates and report syntax errors",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide template file or directory paths")
			os.Exit(1)
		}

		failed := 0
		for _, path := range args {
			for _, file := range collectTemplates(path) {
				if _, err := velo.ParseFile(file); err != nil {
					failed++
					printTemplateError(file, err)
					continue
				}
				color.Green("OK  %s", file)
			}
		}

		if failed > 0 {
			os.Exit(1)
		}
	},
}

// collectTemplates expands a directory argument into the .vm template
// files under it; a plain file argument is used as-is.
func collectTemplates(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		color.Red("error accessing %s: %v", path, err)
		return nil
	}
	if !info.IsDir() {
		return []string{path}
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".vm" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		color.Red("error walking directory %s: %v", path, err)
	}
	return files
}

func printTemplateError(file string, err error) {
	if pe, ok := velo.AsParseError(err); ok {
		color.Red("ERR %s:%d: %s", file, pe.Line, pe.Message)
		if pe.Context != "" {
			fmt.Printf("    near %q\n", pe.Context)
		}
		return
	}
	color.Red("ERR %s: %v", file, err)
}
