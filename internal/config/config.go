// Package config loads the appgen project configuration using Viper, from
// .appgen.yml, APPGEN_ environment variables and command-line flags.
//
// The configuration describes where the project keeps its plugins, layouts
// and middleware, which plugins are registered explicitly, the runtime-config
// tree exposed to generated accessors, TypeScript shim options and the list
// of installed modules. Defaults are applied after unmarshalling and the
// result is validated before any generation step sees it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/appgen/internal/errors"
)

type Config struct {
	RootDir      string           `mapstructure:"root_dir" yaml:"root_dir"`
	SrcDir       string           `mapstructure:"src_dir" yaml:"src_dir"`
	BuildDir     string           `mapstructure:"build_dir" yaml:"build_dir"`
	Dirs         DirsConfig       `mapstructure:"dirs" yaml:"dirs"`
	Extensions   []string         `mapstructure:"extensions" yaml:"extensions"`
	Ignore       []string         `mapstructure:"ignore" yaml:"ignore"`
	Plugins      []PluginEntry    `mapstructure:"plugins" yaml:"plugins"`
	TypeScript   TypeScriptConfig `mapstructure:"typescript" yaml:"typescript"`
	Experimental map[string]bool  `mapstructure:"experimental" yaml:"experimental"`
	Modules      []ModuleEntry    `mapstructure:"modules" yaml:"modules"`
	Watch        WatchConfig      `mapstructure:"watch" yaml:"watch"`
	LogLevel     string           `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string           `mapstructure:"log_format" yaml:"log_format"`

	// RuntimeConfig is read straight from the config file so that key case
	// survives; Viper folds keys to lower case.
	RuntimeConfig map[string]interface{} `mapstructure:"-" yaml:"runtime_config"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

type DirsConfig struct {
	Plugins    string `mapstructure:"plugins" yaml:"plugins"`
	Layouts    string `mapstructure:"layouts" yaml:"layouts"`
	Middleware string `mapstructure:"middleware" yaml:"middleware"`
}

// PluginEntry registers a plugin explicitly, in addition to the ones found
// in the plugins directory.
type PluginEntry struct {
	Src       string   `mapstructure:"src" yaml:"src"`
	Name      string   `mapstructure:"name" yaml:"name,omitempty"`
	Mode      string   `mapstructure:"mode" yaml:"mode,omitempty"`
	Order     *int     `mapstructure:"order" yaml:"order,omitempty"`
	Enforce   string   `mapstructure:"enforce" yaml:"enforce,omitempty"`
	DependsOn []string `mapstructure:"depends_on" yaml:"depends_on,omitempty"`
	Parallel  bool     `mapstructure:"parallel" yaml:"parallel,omitempty"`
}

type TypeScriptConfig struct {
	Shim   bool `mapstructure:"shim" yaml:"shim"`
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

type ModuleEntry struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Version   string `mapstructure:"version" yaml:"version,omitempty"`
	ConfigKey string `mapstructure:"config_key" yaml:"config_key,omitempty"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Load builds the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperrors.WrapConfig(err, "failed to decode configuration")
	}

	if file := v.ConfigFileUsed(); file != "" {
		config.ConfigFile = file
		tree, err := loadRuntimeConfig(file)
		if err != nil {
			return nil, err
		}
		config.RuntimeConfig = tree
	}
	if config.RuntimeConfig == nil && v.IsSet("runtime_config") {
		config.RuntimeConfig = v.GetStringMap("runtime_config")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.RootDir == "" {
		config.RootDir = "."
	}
	if config.SrcDir == "" {
		config.SrcDir = config.RootDir
	} else if !filepath.IsAbs(config.SrcDir) {
		config.SrcDir = filepath.Join(config.RootDir, config.SrcDir)
	}
	if config.BuildDir == "" {
		config.BuildDir = ".appgen"
	}
	if config.Dirs.Plugins == "" {
		config.Dirs.Plugins = "plugins"
	}
	if config.Dirs.Layouts == "" {
		config.Dirs.Layouts = "layouts"
	}
	if config.Dirs.Middleware == "" {
		config.Dirs.Middleware = "middleware"
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".js", ".mjs", ".ts", ".mts"}
	}
	if len(config.Ignore) == 0 {
		config.Ignore = []string{"**/*.test.*", "**/*.spec.*", "**/node_modules/**"}
	}
	if config.Experimental == nil {
		config.Experimental = make(map[string]bool)
	}
	if config.RuntimeConfig == nil {
		config.RuntimeConfig = make(map[string]interface{})
	}
	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = 100 * time.Millisecond
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

// loadRuntimeConfig reads the runtime_config section of a YAML config file.
func loadRuntimeConfig(file string) (map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".yml" && ext != ".yaml" {
		return nil, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, apperrors.WrapIO(err, apperrors.ErrCodeFileNotFound, "failed to read config file").
			WithFile(file)
	}

	var doc struct {
		RuntimeConfig map[string]interface{} `yaml:"runtime_config"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.WrapConfig(err, "failed to parse runtime_config").WithFile(file)
	}
	return doc.RuntimeConfig, nil
}

// SrcPath joins rel onto the source directory.
func (c *Config) SrcPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.SrcDir, rel)
}

// BuildPath joins rel onto the build directory.
func (c *Config) BuildPath(rel string) string {
	if filepath.IsAbs(c.BuildDir) {
		return filepath.Join(c.BuildDir, rel)
	}
	return filepath.Join(c.RootDir, c.BuildDir, rel)
}

// PublicRuntimeConfig returns the runtime-config subtree safe to ship to the client.
func (c *Config) PublicRuntimeConfig() map[string]interface{} {
	if public, ok := c.RuntimeConfig["public"].(map[string]interface{}); ok {
		return public
	}
	return map[string]interface{}{}
}

// ExperimentalEnabled reports whether an experimental flag is switched on.
func (c *Config) ExperimentalEnabled(flag string) bool {
	return c.Experimental[strings.ToLower(flag)]
}

func (c *Config) String() string {
	return fmt.Sprintf("appgen config (src=%s build=%s plugins=%d modules=%d)",
		c.SrcDir, c.BuildDir, len(c.Plugins), len(c.Modules))
}
