// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/idle"
	"github.com/jeranaias/warden/internal/session"
	"github.com/jeranaias/warden/internal/telemetry"
	"github.com/jeranaias/warden/internal/ui/styles"
)

// inboxSize bounds callback messages waiting for Update. Snapshots arrive at
// most once per second plus one per transition, so this never fills while
// the program is running.
const inboxSize = 64

type screen int

const (
	screenAuth screen = iota
	screenDashboard
)

// Options configures an App.
type Options struct {
	Session *session.Orchestrator
	Idle    idle.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// CallTimeout bounds ping and extend calls. Defaults to 15s.
	CallTimeout time.Duration
}

// App is the root Bubble Tea model.
type App struct {
	sess        *session.Orchestrator
	idleCfg     idle.Config
	log         *slog.Logger
	metrics     *telemetry.Metrics
	callTimeout time.Duration

	screen     screen
	form       authForm
	dash       dashboard
	modal      expiringModal
	snap       idle.Snapshot
	width      int
	height     int
	quitting   bool
	loggingOut bool

	mon    *idle.Monitor
	monGen int

	inbox       chan tea.Msg
	done        chan struct{}
	unsubscribe func()
}

// New builds the app. A session restored from storage opens on the
// dashboard.
func New(opts Options) *App {
	a := &App{
		sess:        opts.Session,
		idleCfg:     opts.Idle,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		callTimeout: opts.CallTimeout,
		form:        newAuthForm(),
		modal:       newExpiringModal(opts.Idle),
		inbox:       make(chan tea.Msg, inboxSize),
		done:        make(chan struct{}),
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.callTimeout <= 0 {
		a.callTimeout = api.DefaultTimeout
	}
	a.unsubscribe = a.sess.Subscribe(func(ev session.Event) {
		a.post(sessionMsg{ev: ev})
	})
	if user, ok := a.sess.CurrentUser(); ok {
		a.dash = dashboard{user: user}
		a.screen = screenDashboard
		a.startMonitor()
	}
	return a
}

// Init starts listening for callback messages.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.listen(), a.form.setFocus(fieldEmail))
}

// listen waits for the next callback message.
func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-a.inbox:
			return msg
		case <-a.done:
			return nil
		}
	}
}

// post queues msg for Update. After Close it is dropped.
func (a *App) post(msg tea.Msg) {
	select {
	case a.inbox <- msg:
	case <-a.done:
	}
}

// Close stops the monitor and detaches from the session. Call it after the
// program exits. Safe to call more than once.
func (a *App) Close() {
	a.stopMonitor()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
		close(a.done)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if kind, ok := ActivityKind(msg); ok && a.mon != nil {
		a.mon.Activity(kind)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case idleMsg:
		if msg.gen == a.monGen {
			a.onSnapshot(msg.snap)
		}
		return a, a.listen()

	case sessionMsg:
		cmd := a.onSessionEvent(msg.ev)
		return a, tea.Batch(cmd, a.listen())

	case authResultMsg:
		if msg.err != nil {
			a.form.fail(msg.err)
			return a, nil
		}
		a.enterDashboard()
		return a, nil

	case pingResultMsg:
		a.dash.pinging = false
		if msg.err != nil {
			a.dash.status = styles.RenderError(api.Message(msg.err))
		} else {
			a.dash.status = styles.RenderSuccess("Server says " + msg.resp.Message)
		}
		return a, nil

	case extendResultMsg:
		a.modal.extending = false
		if msg.err != nil {
			a.modal.err = "Could not extend session: " + api.Message(msg.err)
		} else {
			a.modal.err = ""
		}
		return a, nil

	case logoutResultMsg:
		a.loggingOut = false
		if msg.err != nil {
			a.log.Warn("LOGOUT_FAILED", "error", msg.err)
		}
		return a, nil

	case tea.KeyMsg:
		return a.onKey(msg)
	}

	if a.screen == screenAuth {
		cmd, _ := a.form.update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a.quit()
	}

	if a.screen == screenAuth {
		if msg.String() == "esc" {
			return a.quit()
		}
		cmd, submit := a.form.update(msg)
		if submit {
			return a, a.submit()
		}
		return a, cmd
	}

	if a.snap.State == idle.Expiring {
		switch msg.String() {
		case "e", "enter":
			if !a.modal.extending {
				a.modal.extending = true
				return a, a.extend()
			}
		case "l":
			return a, a.logout()
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		return a.quit()
	case "l":
		return a, a.logout()
	case "p":
		if !a.dash.pinging {
			a.dash.pinging = true
			return a, a.ping()
		}
	}
	return a, nil
}

func (a *App) quit() (tea.Model, tea.Cmd) {
	a.quitting = true
	a.stopMonitor()
	return a, tea.Quit
}

// =============================================================================
// COMMANDS
// =============================================================================

func (a *App) submit() tea.Cmd {
	creds, confirm := a.form.credentials()
	mode := a.form.mode
	sess := a.sess
	timeout := a.callTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if mode == modeRegister {
			user, err := sess.Register(ctx, creds, confirm)
			return authResultMsg{user: user, err: err}
		}
		user, err := sess.Login(ctx, creds)
		return authResultMsg{user: user, err: err}
	}
}

func (a *App) ping() tea.Cmd {
	client := a.sess.API()
	timeout := a.callTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := client.Ping(ctx)
		return pingResultMsg{resp: resp, err: err}
	}
}

func (a *App) extend() tea.Cmd {
	mon := a.mon
	timeout := a.callTimeout
	return func() tea.Msg {
		if mon == nil {
			return extendResultMsg{err: idle.ErrStopped}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return extendResultMsg{err: mon.Extend(ctx)}
	}
}

func (a *App) logout() tea.Cmd {
	if a.loggingOut {
		return nil
	}
	a.loggingOut = true
	sess := a.sess
	return func() tea.Msg {
		return logoutResultMsg{err: sess.Logout(context.Background())}
	}
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

func (a *App) onSnapshot(snap idle.Snapshot) {
	// Snapshots can be delivered out of order across timer goroutines.
	if snap.Seq < a.snap.Seq {
		return
	}
	if snap.State != idle.Expiring {
		a.modal.err = ""
		a.modal.extending = false
	}
	a.snap = snap
}

func (a *App) onSessionEvent(ev session.Event) tea.Cmd {
	switch {
	case ev.Kind.Authenticated():
		if ev.User != nil {
			a.dash.user = *ev.User
		}
		a.enterDashboard()
		return nil
	case ev.Kind == session.EventIdleLogout:
		return a.leaveDashboard("You were signed out after a period of inactivity.")
	case ev.Kind == session.EventForcedLogout:
		return a.leaveDashboard("Your session ended. Please sign in again.")
	default:
		return a.leaveDashboard("Signed out.")
	}
}

func (a *App) enterDashboard() {
	if user, ok := a.sess.CurrentUser(); ok {
		a.dash.user = user
	}
	if a.screen == screenDashboard && a.mon != nil {
		return
	}
	a.screen = screenDashboard
	a.dash.status = ""
	a.form.reset("")
	a.startMonitor()
}

func (a *App) leaveDashboard(notice string) tea.Cmd {
	a.stopMonitor()
	if a.screen == screenAuth {
		return nil
	}
	a.screen = screenAuth
	a.dash = dashboard{}
	return a.form.reset(notice)
}

func (a *App) startMonitor() {
	if a.mon != nil {
		return
	}
	a.monGen++
	gen := a.monGen
	mon, err := idle.Start(a.idleCfg, a.sess.IdleLogout,
		idle.WithOnChange(func(s idle.Snapshot) { a.post(idleMsg{gen: gen, snap: s}) }),
		idle.WithExtender(a.sess.Refresher()),
		idle.WithLogger(a.log),
		idle.WithMetrics(a.metrics),
	)
	if err != nil {
		a.log.Error("SESSION_MONITOR_FAILED", "error", err)
		return
	}
	a.mon = mon
	a.snap = mon.Snapshot()
}

func (a *App) stopMonitor() {
	if a.mon == nil {
		return
	}
	a.mon.Stop()
	a.mon = nil
	a.monGen++
	a.snap = idle.Snapshot{}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if a.screen == screenAuth {
		return a.place(a.form.view())
	}
	if a.snap.State == idle.Expiring {
		return a.modal.view(a.snap, a.width, a.height)
	}
	return padLines(warningBanner(a.snap, a.width), a.place(a.dash.view(a.snap)))
}

func (a *App) place(s string) string {
	if a.width == 0 || a.height == 0 {
		return s
	}
	h := a.height
	if a.snap.State == idle.Warning {
		h--
	}
	return lipgloss.Place(a.width, h, lipgloss.Center, lipgloss.Center, s)
}
