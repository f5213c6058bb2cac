package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/velocigo/velo/pkg/velo"
)

var (
	dataFile string
	outPath  string
	varFlags []string
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template against a variable map",
	Long: `Parses the template file and evaluates it against variables taken
from a YAML or JSON data file and/or repeated --var key=value flags.
Example) velo render greeting.vm --data vars.yaml --var name=World`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		vars, err := loadVars(dataFile, varFlags)
		if err != nil {
			logger.Error("Failed to load variables", zap.Error(err))
			os.Exit(1)
		}

		tmpl, err := velo.ParseFile(path)
		if err != nil {
			printTemplateError(path, err)
			os.Exit(1)
		}

		output, err := tmpl.Evaluate(vars)
		if err != nil {
			printTemplateError(path, err)
			os.Exit(1)
		}

		if outPath != "" {
			if err := os.WriteFile(outPath, []byte(output), 0o644); err != nil {
				logger.Error("Failed to write output", zap.Error(err))
				os.Exit(1)
			}
			logger.Info("Rendered template",
				zap.String("template", path),
				zap.String("output", outPath))
			return
		}
		fmt.Print(output)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&dataFile, "data", "d", "", "YAML or JSON file with template variables")
	renderCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (defaults to stdout)")
	renderCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a variable as key=value (repeatable)")
}

// loadVars merges the data file (if any) with --var overrides. YAML is
// a superset of JSON, so one decoder covers both formats.
func loadVars(dataFile string, varFlags []string) (map[string]any, error) {
	vars := make(map[string]any)

	if dataFile != "" {
		data, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("parsing data file %s: %w", dataFile, err)
		}
	}

	for _, kv := range varFlags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --var %q, expected key=value", kv)
		}
		vars[key] = value
	}

	return vars, nil
}
