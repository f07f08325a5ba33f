// Package config loads, validates and saves the relay timer YAML settings.
package config
