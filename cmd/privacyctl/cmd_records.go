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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/guard"
	"github.com/AleutianAI/privacyguard/services/privacy/masker"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

func (a *app) library(ctx context.Context) (*patterns.Library, error) {
	if a.patternsFile == "" {
		return patterns.Default()
	}
	return patterns.LoadFile(ctx, a.patternsFile)
}

// readRecord reads a JSON object from path, or from stdin when path is
// "-" or empty.
func (a *app) readRecord(path string) (privacy.Record, error) {
	var r io.Reader = a.in
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open record: %w", err)
		}
		defer f.Close()
		r = f
	}
	rec, err := privacy.DecodeRecord(r)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return rec, nil
}

func readSettings(path string) (*privacy.UserPrivacySettings, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s privacy.UserPrivacySettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return &s, nil
}

func newFilterCmd(a *app) *cobra.Command {
	var (
		level         string
		settingsPath  string
		noMask        bool
		authenticated bool
	)
	cmd := &cobra.Command{
		Use:   "filter [file|-]",
		Short: "Render a record at a privacy level (filter, then mask)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lib, err := a.library(ctx)
			if err != nil {
				return err
			}
			rec, err := a.readRecord(firstArg(args))
			if err != nil {
				return err
			}
			settings, err := readSettings(settingsPath)
			if err != nil {
				return err
			}

			cfg := &guard.Config{
				DefaultLevel:   privacy.LevelBusinessCard,
				MaskingEnabled: !noMask,
			}
			g := guard.New(lib, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
			req := guard.ViewRequest{
				Record:        rec,
				Level:         level,
				Settings:      settings,
				Authenticated: authenticated,
				Resource:      "cli",
			}
			if err := g.Authorize(ctx, req); err != nil {
				return err
			}
			out, decision := g.Render(ctx, req)

			fmt.Fprintln(a.errOut, a.style.dim(fmt.Sprintf("level=%s masked=%t fields_removed=%d",
				decision.EffectiveLevel, decision.Masked, decision.FieldsRemoved())))
			return writeJSON(a.out, out)
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", "", "business_card, professional, public_full, ai_safe or none (default business_card)")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "JSON file with the owner's privacy settings")
	cmd.Flags().BoolVar(&noMask, "no-mask", false, "Skip the masking pass")
	cmd.Flags().BoolVar(&authenticated, "owner", false, "Treat the caller as the record owner (honors level none)")
	return cmd
}

func newMaskCmd(a *app) *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "mask [file|-]",
		Short: "Mask sensitive values in a record without filtering it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.library(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := a.readRecord(firstArg(args))
			if err != nil {
				return err
			}
			return writeJSON(a.out, masker.New(lib).Mask(rec, privacy.ParseLevel(level)))
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", "public_full", "Masking level")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
