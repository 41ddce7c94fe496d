// Package internal contains the implementation packages for the appgen CLI.
//
// # Package Organization
//
//   - config: Viper-backed project configuration with defaults and validation
//   - errors: Structured AppError values and the category-aware error handler
//   - logging: slog-based structured logger and operation timing
//   - plugins: Plugin descriptors, mode filtering and dependency ordering
//   - scanner: Discovery of plugins, layouts and middleware on disk
//   - naming: Identifier, case and literal helpers for generated sources
//   - templates: The generated files, each rendered from a build Context
//   - build: Render, hash and write-if-changed pipeline with a manifest
//   - watcher: fsnotify watching with debouncing that re-runs generation
//   - version: Build and version information
//
// # Data Flow
//
// A generation run loads the configuration, scans the project into an App,
// and renders every template from a Context holding both. Templates that
// emit plugin registries resolve the plugin order through the plugins
// package; a dependency cycle fails the run before any file is written.
// The watcher repeats the run after each debounced batch of changes.
package internal
