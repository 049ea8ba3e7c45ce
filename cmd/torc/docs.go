// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var (
	docsOutputDir string
	docsFormat    string
)

func init() {
	docsCmd.Flags().StringVarP(&docsOutputDir, "output", "o", "../../docs/cli", "Output directory for documentation")
	docsCmd.Flags().StringVarP(&docsFormat, "doc-format", "f", "markdown", "Documentation format: markdown, man, rest")
}

var docsCmd = &cobra.Command{
	Use:    "generate-docs",
	Short:  "Generate CLI documentation",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(docsOutputDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		absPath, err := filepath.Abs(docsOutputDir)
		if err != nil {
			return err
		}

		switch docsFormat {
		case "markdown", "md":
			return doc.GenMarkdownTree(rootCmd, absPath)
		case "man":
			header := &doc.GenManHeader{
				Title:   "TORC",
				Section: "1",
				Source:  "Torc workflow orchestrator",
			}
			return doc.GenManTree(rootCmd, header, absPath)
		case "rest", "rst":
			return doc.GenReSTTree(rootCmd, absPath)
		default:
			return fmt.Errorf("unsupported format: %s (use: markdown, man, or rest)", docsFormat)
		}
	},
}
