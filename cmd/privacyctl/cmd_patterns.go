// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

func newPatternsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect pattern tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify [file]",
		Short: "Load a pattern table and report what it contains",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.patternsFile = args[0]
			}
			lib, err := a.library(cmd.Context())
			if err != nil {
				fmt.Fprintln(a.out, a.style.fail("pattern table is invalid"))
				return err
			}

			source := a.patternsFile
			if source == "" {
				source = "embedded"
			}
			fmt.Fprintln(a.out, a.style.success("pattern table is valid"))
			fmt.Fprintf(a.out, "%s %s\n", a.style.title("source:"), source)
			fmt.Fprintf(a.out, "%s %s\n", a.style.title("version:"), lib.Version())
			fmt.Fprintf(a.out, "%s %s\n", a.style.title("fingerprint:"), lib.Fingerprint())
			for _, set := range []patterns.KeywordSet{
				patterns.KeywordsGeneric,
				patterns.KeywordsProfessional,
				patterns.KeywordsAI,
				patterns.KeywordsLocation,
				patterns.KeywordsSalary,
			} {
				fmt.Fprintf(a.out, "%s %d\n", a.style.title(set.String()+" keywords:"), len(lib.Keywords(set)))
			}
			fmt.Fprintf(a.out, "%s %d\n", a.style.title("content rules:"), len(lib.ContentRules()))
			fmt.Fprintf(a.out, "%s %s\n", a.style.title("dangerous patterns:"), strings.Join(lib.DangerousPatterns(), " "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the embedded pattern table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.out.Write(patterns.DefaultYAML())
			return err
		},
	})

	return cmd
}
