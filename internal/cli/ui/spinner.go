package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// StepSpinner shows one startup step at a time. Off a TTY it prints the step
// text and a final mark with no animation, so CI logs stay readable.
type StepSpinner struct {
	w      io.Writer
	s      *spinner.Spinner
	msg    string
	noSpin bool
}

// NewStepSpinner creates a spinner writing to w.
func NewStepSpinner(w io.Writer, noSpin bool) *StepSpinner {
	return &StepSpinner{w: w, noSpin: noSpin}
}

// Start begins a step.
func (ss *StepSpinner) Start(msg string) {
	ss.Stop()
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s", msg)
		return
	}
	ss.s = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(ss.w))
	ss.s.Prefix = "  "
	ss.s.Suffix = " " + msg
	ss.s.Start()
}

// Done ends the current step with a check mark.
func (ss *StepSpinner) Done() { ss.finish(StyleSuccess.Render(SymbolCheck)) }

// Fail ends the current step with a cross.
func (ss *StepSpinner) Fail() { ss.finish(StyleError.Render(SymbolCross)) }

// Step runs fn as a named step and marks it by its result.
func (ss *StepSpinner) Step(msg string, fn func() error) error {
	ss.Start(msg)
	if err := fn(); err != nil {
		ss.Fail()
		return err
	}
	ss.Done()
	return nil
}

// Stop halts the animation without printing a mark.
func (ss *StepSpinner) Stop() {
	if ss.s != nil {
		ss.s.Stop()
		ss.s = nil
	}
}

func (ss *StepSpinner) finish(mark string) {
	if ss.noSpin {
		fmt.Fprintf(ss.w, " %s\n", mark)
		return
	}
	ss.Stop()
	fmt.Fprintf(ss.w, "\r  %s %s\n", ss.msg, mark)
}
