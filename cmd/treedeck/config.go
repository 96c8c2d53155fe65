// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the treedeck CLI configuration, loaded from
// ~/.treedeck/config.yaml. Flags override file values.
type Config struct {
	// RemoteURL is the base URL of the cloud tree store. Empty disables
	// the remote backend; cloud saves then land in local storage.
	RemoteURL string `yaml:"remote_url"`

	// DataDir holds the local BadgerDB database.
	DataDir string `yaml:"data_dir"`

	// ListenAddr is the bind address for `treedeck serve`.
	ListenAddr string `yaml:"listen_addr"`

	// Origin is the site origin used when composing share URLs.
	Origin string `yaml:"origin"`

	// UserName and UserTier identify the acting user for attribution and
	// quota. Tiers: free, premium, unlimited.
	UserName string `yaml:"user_name"`
	UserTier string `yaml:"user_tier"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		RemoteURL:  "http://localhost:8080",
		DataDir:    "~/.treedeck/data",
		ListenAddr: ":8080",
		Origin:     "http://localhost:8080",
		UserName:   "anonymous",
		UserTier:   "free",
		LogLevel:   "info",
	}
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults, not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".treedeck", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
