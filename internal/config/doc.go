// Package config provides centralized configuration management for the
// CellPulse server. Configuration is loaded from an optional YAML file and
// from CELLPULSE_* environment variables, with environment variables taking
// precedence. The package also resolves the on-disk layout of the cache
// directory, which is the single source of truth for cache artifact paths.
package config
