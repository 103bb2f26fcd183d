// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/model"
	"github.com/jeranaias/warden/internal/ui/styles"
	"github.com/jeranaias/warden/internal/validate"
)

// =============================================================================
// AUTH FORM - login and register
// =============================================================================

type formMode int

const (
	modeLogin formMode = iota
	modeRegister
)

// Field indexes. fieldConfirm only exists in register mode.
const (
	fieldEmail = iota
	fieldPassword
	fieldConfirm
)

var fieldNames = [...]string{"email", "password", "confirm"}

// authForm collects credentials. Submission is reported to the caller,
// which runs the network call.
type authForm struct {
	mode       formMode
	inputs     [3]textinput.Model
	focus      int
	strength   progress.Model
	fieldErrs  validate.Errors
	err        string
	notice     string
	submitting bool
}

func newAuthForm() authForm {
	f := authForm{
		strength: progress.New(progress.WithGradient("#FB7185", "#34D399"), progress.WithWidth(30)),
	}
	placeholders := [3]string{"you@example.com", "password", "repeat password"}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 254
		ti.Width = 36
		ti.Prompt = "> "
		ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
		ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
		ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
		if i != fieldEmail {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '*'
		}
		f.inputs[i] = ti
	}
	f.inputs[fieldEmail].Focus()
	return f
}

func (f *authForm) fieldCount() int {
	if f.mode == modeRegister {
		return 3
	}
	return 2
}

// toggleMode switches between login and register, keeping the email.
func (f *authForm) toggleMode() tea.Cmd {
	if f.mode == modeLogin {
		f.mode = modeRegister
	} else {
		f.mode = modeLogin
		f.inputs[fieldConfirm].Reset()
	}
	f.fieldErrs = nil
	f.err = ""
	return f.setFocus(fieldEmail)
}

func (f *authForm) setFocus(i int) tea.Cmd {
	n := f.fieldCount()
	f.focus = ((i % n) + n) % n
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == f.focus {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// reset clears everything except the mode, used after logout.
func (f *authForm) reset(notice string) tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.fieldErrs = nil
	f.err = ""
	f.notice = notice
	f.submitting = false
	return f.setFocus(fieldEmail)
}

// credentials returns the typed values.
func (f *authForm) credentials() (model.Credentials, string) {
	return model.Credentials{
		Email:    f.inputs[fieldEmail].Value(),
		Password: f.inputs[fieldPassword].Value(),
	}, f.inputs[fieldConfirm].Value()
}

// fail records a submission error, splitting validation errors per field.
func (f *authForm) fail(err error) {
	f.submitting = false
	f.fieldErrs = nil
	f.err = ""
	var verrs validate.Errors
	if errors.As(err, &verrs) {
		f.fieldErrs = verrs
		return
	}
	f.err = api.Message(err)
}

// update handles input. submit is true when enter was pressed on the last
// field and the form is not already submitting.
func (f *authForm) update(msg tea.Msg) (cmd tea.Cmd, submit bool) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f.setFocus(f.focus + 1), false
		case "shift+tab", "up":
			return f.setFocus(f.focus - 1), false
		case "ctrl+r":
			return f.toggleMode(), false
		case "enter":
			if f.submitting {
				return nil, false
			}
			if f.focus < f.fieldCount()-1 {
				return f.setFocus(f.focus + 1), false
			}
			f.submitting = true
			f.notice = ""
			return nil, true
		}
	}

	var c tea.Cmd
	f.inputs[f.focus], c = f.inputs[f.focus].Update(msg)
	return c, false
}

func (f *authForm) view() string {
	var b strings.Builder

	title := "Sign in"
	if f.mode == modeRegister {
		title = "Create account"
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n\n")

	if f.notice != "" {
		b.WriteString(styles.RenderInfo(f.notice))
		b.WriteString("\n\n")
	}

	labels := [3]string{"Email", "Password", "Confirm password"}
	for i := 0; i < f.fieldCount(); i++ {
		label := styles.Label
		if i == f.focus {
			label = styles.FocusedLabel
		}
		b.WriteString(label.Render(labels[i]))
		b.WriteByte('\n')
		b.WriteString(f.inputs[i].View())
		b.WriteByte('\n')
		if msg := f.fieldErrs.For(fieldNames[i]); msg != "" {
			b.WriteString(styles.FieldError.Render(msg))
			b.WriteByte('\n')
		}
		if i == fieldPassword && f.mode == modeRegister {
			s := validate.PasswordStrength(f.inputs[fieldPassword].Value())
			b.WriteString(f.strength.ViewAs(float64(s.Score) / 100))
			b.WriteString(" ")
			b.WriteString(styles.Label.Render(s.Label))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	switch {
	case f.submitting:
		b.WriteString(styles.Hint.Render("Signing in..."))
		b.WriteString("\n\n")
	case f.err != "":
		b.WriteString(styles.RenderError(f.err))
		b.WriteString("\n\n")
	}

	other := "ctrl+r: create account"
	if f.mode == modeRegister {
		other = "ctrl+r: back to sign in"
	}
	b.WriteString(styles.Hint.Render("tab: next field  enter: submit  " + other + "  esc: quit"))
	return styles.Panel.Render(b.String())
}
