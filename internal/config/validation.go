package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "github.com/conneroisu/appgen/internal/errors"
)

var validModes = map[string]bool{
	"": true, "all": true, "both": true,
	"client": true, "client-only": true,
	"server": true, "server-only": true,
}

var validEnforce = map[string]bool{"": true, "pre": true, "default": true, "post": true}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	var errs apperrors.ValidationErrorCollection

	dirs := []struct{ field, path string }{
		{"build_dir", config.BuildDir},
		{"dirs.plugins", config.Dirs.Plugins},
		{"dirs.layouts", config.Dirs.Layouts},
		{"dirs.middleware", config.Dirs.Middleware},
	}
	for _, dir := range dirs {
		if err := validatePath(dir.path); err != nil {
			errs.AddField(dir.field, dir.path, err.Error(), "use a path inside the project directory")
		}
	}

	for i, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\ `) {
			errs.AddField(fmt.Sprintf("extensions[%d]", i), ext, "extension must start with a dot", "e.g. .ts")
		}
	}

	for i, pattern := range config.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			errs.AddField(fmt.Sprintf("ignore[%d]", i), pattern, "invalid glob pattern")
		}
	}

	for i, entry := range config.Plugins {
		validatePluginEntry(&errs, fmt.Sprintf("plugins[%d]", i), entry)
	}

	for i, module := range config.Modules {
		if module.Name == "" {
			errs.AddField(fmt.Sprintf("modules[%d].name", i), module.Name, "module name cannot be empty")
		}
		if module.ConfigKey != "" && !isIdentifier(module.ConfigKey) {
			errs.AddField(fmt.Sprintf("modules[%d].config_key", i), module.ConfigKey,
				"config key must be a valid identifier")
		}
	}

	if config.LogFormat != "text" && config.LogFormat != "json" {
		errs.AddField("log_format", config.LogFormat, "log format must be text or json")
	}

	if errs.HasErrors() {
		return errs.ToAppError()
	}
	return nil
}

func validatePluginEntry(errs *apperrors.ValidationErrorCollection, field string, entry PluginEntry) {
	if strings.TrimSpace(entry.Src) == "" {
		errs.AddField(field+".src", entry.Src, "plugin src cannot be empty")
	} else if err := validatePath(entry.Src); err != nil {
		errs.AddField(field+".src", entry.Src, err.Error())
	}

	if entry.Name != "" && !isPluginName(entry.Name) {
		errs.AddField(field+".name", entry.Name, "plugin name contains invalid characters",
			"use letters, digits, '-', '_', ':' or '.'")
	}

	if !validModes[strings.ToLower(entry.Mode)] {
		errs.AddField(field+".mode", entry.Mode, "unknown plugin mode", "use all, client or server")
	}

	if !validEnforce[strings.ToLower(entry.Enforce)] {
		errs.AddField(field+".enforce", entry.Enforce, "unknown enforce value", "use pre, default or post")
	}

	for _, dep := range entry.DependsOn {
		if dep == "" || !isPluginName(dep) {
			errs.AddField(field+".depends_on", dep, "dependency name contains invalid characters")
		}
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.ToSlash(filepath.Clean(path))
	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") || strings.Contains(cleanPath, "/../") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

func isPluginName(name string) bool {
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_' || char == ':' || char == '.') {
			return false
		}
	}
	return name != ""
}

func isIdentifier(name string) bool {
	for i, char := range name {
		letter := (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || char == '_' || char == '$'
		if !letter && (i == 0 || char < '0' || char > '9') {
			return false
		}
	}
	return name != ""
}
