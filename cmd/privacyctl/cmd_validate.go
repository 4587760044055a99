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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/privacyguard/services/privacy/validate"
)

// errInvalid marks a value rejected by the validator. The message has
// already been printed.
var errInvalid = errors.New("value rejected")

func newValidateCmd(a *app) *cobra.Command {
	var kind, field string
	cmd := &cobra.Command{
		Use:   "validate VALUE",
		Short: "Check a value against the dangerous-pattern and identifier rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.library(cmd.Context())
			if err != nil {
				return err
			}
			v := validate.New(lib)
			value := args[0]

			switch strings.ToLower(kind) {
			case "username":
				if field == "" {
					field = validate.FieldUsername
				}
				err = v.ValidateIdentifier(value, field)
			case "endpoint":
				if field == "" {
					field = validate.FieldEndpoint
				}
				err = v.ValidateIdentifier(value, field)
			case "text", "":
				if field == "" {
					field = "value"
				}
				err = v.Validate(value, field, false)
			default:
				return fmt.Errorf("unknown kind %q (want username, endpoint or text)", kind)
			}

			if err == nil {
				fmt.Fprintln(a.out, a.style.success(fmt.Sprintf("%s is valid", field)))
				return nil
			}
			fmt.Fprintln(a.out, a.style.fail(err.Error()))
			if violations := v.FindViolations(value); len(violations) > 1 {
				fmt.Fprintln(a.out, a.style.dim("all matches: "+strings.Join(violations, ", ")))
			}
			return errInvalid
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "text", "username, endpoint or text")
	cmd.Flags().StringVarP(&field, "field", "f", "", "Field name used in messages")
	return cmd
}
