// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Command torc is the thin CLI over the workflow execution core: each
// subcommand maps onto one orchestrator flow, with table or JSON
// output and exit code 0 on success, 1 on any error.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/client"
	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/pkg/logging"
)

var (
	// Version is stamped at build time.
	Version   = "dev"
	BuildTime = ""
	Commit    = ""

	flagURL      string
	flagFormat   string
	flagUsername string
	flagPassword string
	flagLogLevel string

	rootCmd = &cobra.Command{
		Use:          "torc",
		Short:        "Orchestrate scientific and HPC workflows",
		Long:         `torc declares, submits, and tracks workflows of interdependent jobs against a torc server, locally or on an HPC scheduler.`,
		Version:      Version,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagURL, "url", "", "torc server URL (env: TORC_SERVER_URL)")
	pf.StringVar(&flagFormat, "format", "table", "Output format: table, json")
	pf.StringVar(&flagUsername, "username", "", "Basic auth username (env: TORC_USERNAME)")
	pf.StringVar(&flagPassword, "password", "", "Basic auth password (env: TORC_PASSWORD)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(hpcCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(docsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show client and server version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("torc version %s\n", Version)
		if BuildTime != "" {
			fmt.Printf("Build Time: %s\n", BuildTime)
		}
		if Commit != "" {
			fmt.Printf("Commit:     %s\n", Commit)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()
		clientV, serverV, err := c.Health().Version(cmd.Context())
		if err != nil {
			fmt.Println("Server:     unreachable")
			return nil
		}
		fmt.Printf("Protocol:   client %s, server %s\n", clientV, serverV)
		if clientV != serverV {
			fmt.Fprintln(os.Stderr, "warning: client and server protocol versions differ")
		}
		return nil
	},
}

// newLogger builds the CLI logger from --log-level.
func newLogger() logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(flagLogLevel)
	cfg.Output = os.Stderr
	cfg.Version = Version
	return logging.NewLogger(cfg)
}

// newClient assembles the store client from flags, environment, and
// the saved config profile, in that order of precedence.
func newClient(opts ...client.Option) (*client.Client, error) {
	profile := loadProfile()

	cfg := config.NewDefault()
	cfg.Load()
	if profile.URL != "" && os.Getenv("TORC_SERVER_URL") == "" {
		cfg.BaseURL = profile.URL
	}
	if flagURL != "" {
		cfg.BaseURL = flagURL
	}

	var provider auth.Provider
	switch {
	case flagUsername != "" && flagPassword != "":
		provider = auth.NewBasicAuth(flagUsername, flagPassword)
	case profile.Username != "" && profile.Password != "" && os.Getenv("TORC_API_TOKEN") == "" &&
		(os.Getenv("TORC_USERNAME") == "" || os.Getenv("TORC_PASSWORD") == ""):
		provider = auth.NewBasicAuth(profile.Username, profile.Password)
	default:
		provider = auth.FromEnv()
	}

	base := []client.Option{
		client.WithConfig(cfg),
		client.WithAuth(provider),
		client.WithLogger(newLogger()),
	}
	return client.New(append(base, opts...)...)
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonOutput() bool { return flagFormat == "json" }

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
