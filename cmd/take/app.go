package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sanjio/sanjio/internal/console"
	"github.com/sanjio/sanjio/internal/countdown"
	"github.com/sanjio/sanjio/internal/session"
	"github.com/sanjio/sanjio/internal/submission"
)

type action int

const (
	actionNone action = iota
	actionQuit
	actionSubmit
)

const maxJumpDigits = 4

// app turns key presses into store operations and tracks what the footer
// shows. It is driven from a single goroutine.
type app struct {
	store   *session.Store
	mode    console.Mode
	jump    string
	message string
	busy    bool
}

func newApp(store *session.Store) *app {
	return &app{store: store}
}

func (a *app) handle(ev console.Event) action {
	switch a.mode {
	case console.ModeSubmitting:
		// Navigation stays live while the finish call is outstanding; the
		// answers already went out with it.
		switch ev.Kind {
		case console.KeyNext, console.KeyPrev, console.KeyMap:
		default:
			return actionNone
		}
	case console.ModeConfirmSubmit:
		if ev.Kind == console.KeyYes && !a.busy {
			a.mode = console.ModeSubmitting
			a.busy = true
			a.message = ""
			return actionSubmit
		}
		a.mode = console.ModeAnswering
		return actionNone
	case console.ModeJump:
		a.handleJump(ev)
		return actionNone
	}

	if a.mode != console.ModeSubmitting {
		a.message = ""
	}
	st := a.store.State()
	q, hasQuestion := st.Current()

	switch ev.Kind {
	case console.KeyDigit:
		if hasQuestion && ev.Digit >= 1 && ev.Digit <= len(q.Options) {
			a.store.SetAnswer(q.ID, ev.Digit)
		}
	case console.KeyFlag:
		if hasQuestion {
			a.store.ToggleFlag(q.ID)
		}
	case console.KeyNext:
		a.store.NextQuestion()
	case console.KeyPrev:
		a.store.PrevQuestion()
	case console.KeyMap:
		if !st.SidebarOpen {
			a.store.ToggleSidebar()
		}
		a.mode = console.ModeJump
		a.jump = ""
	case console.KeySubmit:
		if !a.busy {
			a.mode = console.ModeConfirmSubmit
		}
	case console.KeyQuit:
		return actionQuit
	}
	return actionNone
}

func (a *app) handleJump(ev console.Event) {
	switch ev.Kind {
	case console.KeyDigit:
		if len(a.jump) < maxJumpDigits {
			a.jump += strconv.Itoa(ev.Digit)
		}
	case console.KeyBackspace:
		if a.jump != "" {
			a.jump = a.jump[:len(a.jump)-1]
		}
	case console.KeyEnter:
		n, err := strconv.Atoi(a.jump)
		total := len(a.store.State().Questions)
		if err != nil || n < 1 || n > total {
			a.message = fmt.Sprintf("There is no question %q.", a.jump)
			a.jump = ""
			return
		}
		a.store.GoToQuestion(n - 1)
		a.closeMap()
	case console.KeyNo, console.KeyMap, console.KeyQuit:
		a.closeMap()
	}
}

func (a *app) closeMap() {
	if a.store.State().SidebarOpen {
		a.store.ToggleSidebar()
	}
	a.mode = a.idleMode()
	a.jump = ""
}

// idleMode is the footer shown when no prompt is open.
func (a *app) idleMode() console.Mode {
	if a.busy {
		return console.ModeSubmitting
	}
	return console.ModeAnswering
}

// submitted records the outcome of an explicit submit. Success and time-up
// outcomes arrive through the view's Done channel as well.
func (a *app) submitted(err error) {
	a.busy = false
	if a.mode == console.ModeSubmitting {
		a.mode = console.ModeAnswering
	}
	if err == nil {
		return
	}
	var subErr *submission.Error
	switch {
	case errors.As(err, &subErr):
		a.message = subErr.Message()
	case errors.Is(err, submission.ErrInFlight):
		a.message = "A submission is already in progress."
	default:
		a.message = "Submitting failed: " + err.Error()
	}
}

func (a *app) screen(title string, cd *countdown.Controller) console.Screen {
	return console.Screen{
		Title:     title,
		State:     a.store.State(),
		Remaining: cd.Remaining(),
		Unlimited: cd.Unlimited(),
		LowTime:   cd.LowTime(),
		Mode:      a.mode,
		JumpInput: a.jump,
		Message:   a.message,
	}
}
