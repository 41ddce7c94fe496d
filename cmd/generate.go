package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/appgen/internal/build"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/scanner"
	"github.com/conneroisu/appgen/internal/templates"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen", "g"},
	Short:   "Write the generated sources to the build directory",
	Long: `Scan the project and write every generated file to the build directory
(.appgen by default). Files whose content did not change are left untouched.

A plugin dependency cycle or any other render failure aborts the run before
anything is written.

Examples:
  appgen generate                           # Write all generated files
  appgen generate --print plugins.client.mjs # Print one file instead`,
	RunE: runGenerate,
}

var (
	generatePrint string
	generateQuiet bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generatePrint, "print", "p", "", "Render one generated file to stdout without writing")
	generateCmd.Flags().BoolVarP(&generateQuiet, "quiet", "q", false, "Suppress the summary")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	cfg, logger, err := loadProject()
	if err != nil {
		return err
	}
	handler := apperrors.NewErrorHandler(logger)

	if generatePrint != "" {
		tmpl, ok := templates.ByFilename(generatePrint)
		if !ok {
			return apperrors.NewValidationError(apperrors.ErrCodeFileNotFound,
				fmt.Sprintf("unknown generated file %q, expected one of: %s", generatePrint, strings.Join(templateNames(), ", ")))
		}
		app, err := scanner.New(cfg, logger).Scan(ctx)
		if err != nil {
			handler.Handle(ctx, err)
			return err
		}
		out, err := tmpl.Render(ctx, templates.NewContext(cfg, app, logger))
		if err != nil {
			handler.Handle(ctx, err)
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	result, err := build.NewGenerator(cfg, logger).Generate(ctx)
	if err != nil {
		handler.Handle(ctx, err)
		if apperrors.IsBuildError(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), "No files were written.")
		}
		return err
	}

	if !generateQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s: %d written, %d unchanged, %d removed (%s)\n",
			cfg.BuildPath(""), len(result.Written), len(result.Unchanged), len(result.Removed), result.Duration.Round(time.Microsecond))
		for _, name := range result.Written {
			fmt.Fprintf(cmd.OutOrStdout(), "  + %s\n", name)
		}
		for _, name := range result.Removed {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
		}
	}
	return nil
}

func templateNames() []string {
	var names []string
	for _, t := range templates.Default() {
		names = append(names, t.Filename)
	}
	return names
}
