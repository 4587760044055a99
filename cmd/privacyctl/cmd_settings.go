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
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage privacy settings files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "edit FILE",
		Short: "Interactively edit a privacy settings JSON file",
		Long: `Opens a form over the settings flags. A missing file starts from
the zero value, which hides every optional category. Custom privacy rules
already in the file are kept unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			settings := &privacy.UserPrivacySettings{}
			existing, err := readSettings(path)
			switch {
			case err == nil:
				settings = existing
			case errors.Is(err, os.ErrNotExist):
			default:
				return err
			}

			if err := a.editSettings(settings); err != nil {
				return fmt.Errorf("edit settings: %w", err)
			}

			data, err := json.MarshalIndent(settings, "", "  ")
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
				return fmt.Errorf("write settings: %w", err)
			}
			fmt.Fprintln(a.out, a.style.success("saved "+path))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show FILE",
		Short: "Print a privacy settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := readSettings(args[0])
			if err != nil {
				return err
			}
			return writeJSON(a.out, settings)
		},
	})

	return cmd
}

// runSettingsForm edits s in place with a terminal form.
func runSettingsForm(s *privacy.UserPrivacySettings) error {
	if !isTerminal(os.Stdin) {
		return errors.New("settings edit needs an interactive terminal")
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title("Business card mode").
				Description("Show only the business card, whatever level is requested").
				Value(&s.BusinessCardMode),
			huh.NewConfirm().Title("Allow AI assistants").
				Description("Permit ai_safe views of this profile").
				Value(&s.AIAssistantAccess),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Show contact info").Value(&s.ShowContactInfo),
			huh.NewConfirm().Title("Show location").Value(&s.ShowLocation),
			huh.NewConfirm().Title("Show current company").Value(&s.ShowCurrentCompany),
			huh.NewConfirm().Title("Show salary range").Value(&s.ShowSalaryRange),
			huh.NewConfirm().Title("Show education details").Value(&s.ShowEducationDetails),
			huh.NewConfirm().Title("Show personal projects").Value(&s.ShowPersonalProjects),
		),
	)
	return form.Run()
}
