// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validate checks credentials locally before any network call.
package validate

import (
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/model"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// maxEmailLength is the RFC 5321 path limit.
const maxEmailLength = 254

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

// Errors collects every failed rule, in field order.
type Errors []FieldError

// Error joins the messages.
func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// For returns the first message for field, or "".
func (e Errors) For(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

func (e *Errors) add(field, msg string) {
	*e = append(*e, FieldError{Field: field, Message: msg})
}

// result wraps collected errors as a KindValidation *api.Error, or nil.
func (e Errors) result() error {
	if len(e) == 0 {
		return nil
	}
	return &api.Error{Kind: api.KindValidation, Message: e.Error(), Err: e}
}

var domainFolder = cases.Fold()

// NormalizeEmail trims, applies NFKC and case-folds the domain. The local
// part keeps its case since servers may treat it as significant.
func NormalizeEmail(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return s
	}
	return s[:at+1] + domainFolder.String(s[at+1:])
}

func checkEmail(errs *Errors, email string) {
	switch {
	case email == "":
		errs.add("email", "Email is required")
	case len(email) > maxEmailLength:
		errs.add("email", "Email is too long")
	default:
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@'):], ".") {
			errs.add("email", "Please enter a valid email address")
		}
	}
}

func checkPasswordPresent(errs *Errors, password string) bool {
	switch {
	case password == "":
		errs.add("password", "Password is required")
		return false
	case len([]rune(password)) < MinPasswordLength:
		errs.add("password", "Password must be at least 6 characters")
		return false
	}
	return true
}

// Login validates and normalizes login credentials.
func Login(creds model.Credentials) (model.Credentials, error) {
	creds.Email = NormalizeEmail(creds.Email)

	var errs Errors
	checkEmail(&errs, creds.Email)
	checkPasswordPresent(&errs, creds.Password)
	return creds, errs.result()
}

// Register validates and normalizes registration input. confirm must match
// the password.
func Register(creds model.Credentials, confirm string) (model.Credentials, error) {
	creds.Email = NormalizeEmail(creds.Email)

	var errs Errors
	checkEmail(&errs, creds.Email)
	if checkPasswordPresent(&errs, creds.Password) {
		if !strings.ContainsFunc(creds.Password, unicode.IsUpper) {
			errs.add("password", "Password must contain at least one uppercase letter")
		}
		if !strings.ContainsFunc(creds.Password, unicode.IsLower) {
			errs.add("password", "Password must contain at least one lowercase letter")
		}
		if !strings.ContainsFunc(creds.Password, unicode.IsDigit) {
			errs.add("password", "Password must contain at least one number")
		}
	}
	switch {
	case confirm == "":
		errs.add("confirm", "Please confirm your password")
	case confirm != creds.Password:
		errs.add("confirm", "Passwords must match")
	}
	return creds, errs.result()
}

// Strength is a rough password strength score for display.
type Strength struct {
	Score int // 0-100
	Label string
}

// PasswordStrength scores password on length and character classes.
func PasswordStrength(password string) Strength {
	score := 0
	n := len([]rune(password))
	if n >= 6 {
		score += 20
	}
	if n >= 10 {
		score += 20
	}
	if strings.ContainsFunc(password, unicode.IsLower) {
		score += 20
	}
	if strings.ContainsFunc(password, unicode.IsUpper) {
		score += 20
	}
	if strings.ContainsFunc(password, unicode.IsDigit) {
		score += 10
	}
	if strings.ContainsFunc(password, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		score += 10
	}

	switch {
	case score <= 30:
		return Strength{Score: score, Label: "Weak"}
	case score <= 60:
		return Strength{Score: score, Label: "Fair"}
	case score <= 80:
		return Strength{Score: score, Label: "Good"}
	default:
		return Strength{Score: score, Label: "Strong"}
	}
}
