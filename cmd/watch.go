package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/appgen/internal/build"
	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Regenerate whenever plugins, layouts, middleware or config change",
	Long: `Generate once, then watch the plugin, layout and middleware directories
and the configuration file, regenerating after each burst of changes.

Generation errors such as a plugin dependency cycle are logged and the
watcher keeps running, so fixing the offending file triggers a clean run.

Examples:
  appgen watch
  appgen watch --log-level debug`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadProject()
	if err != nil {
		return err
	}

	generator := build.NewGenerator(cfg, logger)
	pw, err := watcher.NewProjectWatcher(cfg, generator, reloadConfig, logger)
	if err != nil {
		return err
	}
	return pw.Run(ctx)
}

// reloadConfig re-reads the config file before decoding it again.
func reloadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, apperrors.WrapConfig(err, "failed to re-read configuration file")
	}
	return config.Load()
}
