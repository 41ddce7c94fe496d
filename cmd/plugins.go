package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/plugins"
	"github.com/conneroisu/appgen/internal/scanner"
)

var pluginsCmd = &cobra.Command{
	Use:     "plugins",
	Aliases: []string{"p"},
	Short:   "Show the resolved plugin order",
	Long: `Scan the project and print the plugins in the order the generated
registries load them, for the client build, the server build or both.

Examples:
  appgen plugins                  # Client and server order as tables
  appgen plugins --mode client    # Client order only
  appgen plugins -f json          # Output as JSON`,
	RunE: runPlugins,
}

var (
	pluginsFlags *OutputFlags
	pluginsMode  string
)

func init() {
	rootCmd.AddCommand(pluginsCmd)

	pluginsFlags = AddOutputFlags(pluginsCmd)
	pluginsCmd.Flags().StringVarP(&pluginsMode, "mode", "m", "", "Target build (client, server); both when empty")
}

// resolvedPlugin is one row of plugins output.
type resolvedPlugin struct {
	Position   int      `json:"position" yaml:"position"`
	Name       string   `json:"name" yaml:"name"`
	Mode       string   `json:"mode" yaml:"mode"`
	Order      int      `json:"order" yaml:"order"`
	DependsOn  []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Unresolved []string `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Src        string   `json:"src" yaml:"src"`
}

func runPlugins(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	targets := []plugins.Mode{plugins.ModeClient, plugins.ModeServer}
	if pluginsMode != "" {
		mode, err := plugins.ParseMode(pluginsMode)
		if err != nil || mode == plugins.ModeAll {
			return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
				fmt.Sprintf("invalid --mode %q, must be client or server", pluginsMode))
		}
		targets = []plugins.Mode{mode}
	}

	cfg, logger, err := loadProject()
	if err != nil {
		return err
	}
	app, err := scanner.New(cfg, logger).Scan(ctx)
	if err != nil {
		return err
	}

	resolver := plugins.NewResolver(logger)
	output := make(map[string][]resolvedPlugin, len(targets))
	for _, target := range targets {
		ordered, err := resolver.Resolve(ctx, app.Plugins, target)
		if err != nil {
			return err
		}
		rows := make([]resolvedPlugin, len(ordered))
		for i, p := range ordered {
			rows[i] = resolvedPlugin{
				Position:   i + 1,
				Name:       p.Name,
				Mode:       string(p.Mode),
				Order:      p.EffectiveOrder(),
				DependsOn:  p.Deps,
				Unresolved: p.Unresolved,
				Src:        relativeTo(cfg.RootDir, p.Src),
			}
		}
		output[string(target)] = rows
	}

	out := cmd.OutOrStdout()
	switch pluginsFlags.Format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(output)
	default:
		for i, target := range targets {
			if i > 0 {
				fmt.Fprintln(out)
			}
			if !pluginsFlags.Quiet {
				fmt.Fprintf(out, "%s plugins:\n", strings.ToUpper(string(target)[:1])+string(target)[1:])
			}
			writePluginTable(out, output[string(target)])
		}
		return nil
	}
}

func writePluginTable(out io.Writer, rows []resolvedPlugin) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No plugins found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "#\tNAME\tMODE\tORDER\tDEPENDS ON\tSRC")
	for _, r := range rows {
		deps := strings.Join(r.DependsOn, ", ")
		if len(r.Unresolved) > 0 {
			missing := "missing: " + strings.Join(r.Unresolved, ", ")
			if deps != "" {
				deps += "; "
			}
			deps += missing
		}
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", r.Position, r.Name, r.Mode, r.Order, deps, r.Src)
	}
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
