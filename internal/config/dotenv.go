// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads ./.env, or ~/.env when ./.env does not exist. Variables
// already present in the environment are left untouched. It returns the file
// that was loaded, or "" when neither exists.
func LoadDotEnv() (string, error) {
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".env"))
	}
	return LoadFirstDotEnv(candidates...)
}

// LoadFirstDotEnv loads the first existing file among paths.
func LoadFirstDotEnv(paths ...string) (string, error) {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}
