// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command privacyctl runs the privacy engine locally against JSON files.
//
// Usage:
//
//	privacyctl filter profile.json --level professional
//	privacyctl filter - --level ai_safe --settings settings.json < profile.json
//	privacyctl mask record.json --level business_card
//	privacyctl validate '../admin' --kind username
//	privacyctl patterns verify ./patterns.yaml
//	privacyctl patterns dump > patterns.yaml
//	privacyctl settings edit settings.json
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

// app carries the state shared by all subcommands.
type app struct {
	out          io.Writer
	errOut       io.Writer
	in           io.Reader
	style        styler
	patternsFile string

	// editSettings runs the interactive settings form.
	editSettings func(s *privacy.UserPrivacySettings) error
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:           in,
		out:          out,
		errOut:       errOut,
		style:        newStyler(out),
		editSettings: runSettingsForm,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "privacyctl",
		Short:         "Filter, mask and validate records with the privacy engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)
	rootCmd.PersistentFlags().StringVar(&a.patternsFile, "patterns-file", os.Getenv("PRIVACY_PATTERNS_FILE"),
		"Pattern table YAML (default: embedded tables)")

	rootCmd.AddCommand(
		newFilterCmd(a),
		newMaskCmd(a),
		newValidateCmd(a),
		newPatternsCmd(a),
		newSettingsCmd(a),
	)
	return rootCmd
}

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(a).Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, a.style.fail("Error: "+err.Error()))
		}
		os.Exit(1)
	}
}
