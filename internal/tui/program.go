package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/triage"
)

// Controller is the part of the engine a UI drives.
type Controller interface {
	Start(ctx context.Context, resume bool) error
	Stop()
	IsRunning() bool
	Wait() engine.Result
}

// UI couples a bubbletea program with an engine. Create it before the engine
// and pass Observer to engine.WithObserver.
type UI struct {
	program *tea.Program
	stopper *lateStopper
}

// New creates a UI. Program options are passed to bubbletea.
func New(title string, opts ...tea.ProgramOption) *UI {
	stopper := &lateStopper{}
	return &UI{
		program: tea.NewProgram(NewModel(title, stopper), opts...),
		stopper: stopper,
	}
}

// Observer returns an engine observer that forwards events to the program.
func (u *UI) Observer() engine.Observer {
	return engine.ObserverFuncs{
		Progress: func(done, total int, c triage.Classification) {
			u.program.Send(ProgressMsg{Done: done, Total: total, Classification: c})
		},
		Log: func(msg string) {
			u.program.Send(LogMsg(msg))
		},
	}
}

// Run starts the engine, shows the run until it finishes and returns the
// engine result.
func (u *UI) Run(ctx context.Context, ctrl Controller, resume bool) (engine.Result, error) {
	u.stopper.set(ctrl)
	if err := ctrl.Start(ctx, resume); err != nil {
		return engine.Result{}, err
	}

	go func() {
		u.program.Send(FinishedMsg{Result: ctrl.Wait()})
	}()

	final, err := u.program.Run()
	if err != nil {
		ctrl.Stop()
		return ctrl.Wait(), fmt.Errorf("failed to run terminal UI: %w", err)
	}

	if m, ok := final.(Model); ok {
		if res, finished := m.Result(); finished {
			return res, nil
		}
	}
	// The program was killed before the run ended.
	ctrl.Stop()
	return ctrl.Wait(), nil
}

// lateStopper lets the model be built before the controller is known.
type lateStopper struct {
	ctrl Controller
}

func (s *lateStopper) set(ctrl Controller) { s.ctrl = ctrl }

func (s *lateStopper) Stop() {
	if s.ctrl != nil {
		s.ctrl.Stop()
	}
}
