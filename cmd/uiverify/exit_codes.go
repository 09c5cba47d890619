package main

import (
	"errors"

	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/runner"
)

const (
	exitOK          = 0
	exitFailed      = 1
	exitInvalid     = 2
	exitEnvironment = 3
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
	// reported errors were already shown to the user by the summary.
	reported bool
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return exitFailed
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

// reported marks err as already printed.
func reported(err error, code int) error {
	return exitError{code: code, err: err, reported: true}
}

func isReported(err error) bool {
	var e exitError
	return errors.As(err, &e) && e.reported
}

func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return exitCodeForClass(herrors.Class(err))
}

func exitCodeForClass(class herrors.FailureClass) int {
	switch class {
	case herrors.ClassNone:
		return exitOK
	case herrors.ClassConfig:
		return exitInvalid
	case herrors.ClassEnvironment:
		return exitEnvironment
	}
	return exitFailed
}

// exitCodeForResults folds scenario outcomes into one status. Environment
// failures outrank invalid scenarios, which outrank ordinary failures. With
// strict, any soft failure fails the run, optional steps included.
func exitCodeForResults(results []runner.RunResult, strict bool) int {
	code := exitOK
	for _, res := range results {
		c := exitCodeForClass(res.Class())
		if res.Class() == herrors.ClassSoft && !res.Failed() && !strict {
			c = exitOK
		}
		if c > code {
			code = c
		}
	}
	return code
}
