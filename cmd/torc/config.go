// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Profile is the saved client configuration in ~/.torc/config.yaml,
// consulted when the corresponding flag and environment variable are
// both unset.
type Profile struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

func profilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".torc", "config.yaml")
}

// loadProfile reads the saved profile; a missing or unreadable file is
// an empty profile, never an error.
func loadProfile() Profile {
	var p Profile
	path := profilePath()
	if path == "" {
		return p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	_ = yaml.Unmarshal(data, &p)
	return p
}

func saveProfile(p Profile) error {
	path := profilePath()
	if path == "" {
		return fmt.Errorf("cannot determine home directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the saved client configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := loadProfile()
		if p.Password != "" {
			p.Password = "********"
		}
		if jsonOutput() {
			return printJSON(p)
		}
		fmt.Printf("URL:      %s\n", p.URL)
		fmt.Printf("Username: %s\n", p.Username)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save server URL and credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := loadProfile()
		if v, _ := cmd.Flags().GetString("url"); v != "" {
			p.URL = v
		}
		if v, _ := cmd.Flags().GetString("username"); v != "" {
			p.Username = v
		}
		if v, _ := cmd.Flags().GetString("password"); v != "" {
			p.Password = v
		}
		if err := saveProfile(p); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", profilePath())
		return nil
	},
}

func init() {
	configSetCmd.Flags().String("url", "", "torc server URL")
	configSetCmd.Flags().String("username", "", "Basic auth username")
	configSetCmd.Flags().String("password", "", "Basic auth password")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
