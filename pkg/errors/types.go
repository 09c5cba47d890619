package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Scenario definition errors
	ErrCodeScenarioInvalid ErrorCode = "SCENARIO_INVALID"
	ErrCodePatternInvalid  ErrorCode = "PATTERN_INVALID"
	ErrCodeFixtureInvalid  ErrorCode = "FIXTURE_INVALID"

	// Environment errors
	ErrCodeEngineLaunch       ErrorCode = "ENGINE_LAUNCH"
	ErrCodeBaseURLUnreachable ErrorCode = "BASE_URL_UNREACHABLE"

	// Hard scenario failures
	ErrCodeNavigationTimeout ErrorCode = "NAVIGATION_TIMEOUT"
	ErrCodeNavigationFailed  ErrorCode = "NAVIGATION_FAILED"
	ErrCodeSessionClosed     ErrorCode = "SESSION_CLOSED"

	// Soft scenario failures
	ErrCodeLocatorTimeout   ErrorCode = "LOCATOR_TIMEOUT"
	ErrCodeLocatorAmbiguous ErrorCode = "LOCATOR_AMBIGUOUS"
	ErrCodeAssertionFailed  ErrorCode = "ASSERTION_FAILED"

	// Mock responder failures
	ErrCodeResponderFailed ErrorCode = "RESPONDER_FAILED"

	// Artifact errors
	ErrCodeArtifactWrite ErrorCode = "ARTIFACT_WRITE"

	// Generic errors
	ErrCodeInternal       ErrorCode = "INTERNAL"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

// FailureClass groups error codes by how the harness reacts to them.
type FailureClass string

const (
	ClassNone        FailureClass = ""
	ClassEnvironment FailureClass = "environment"
	ClassHard        FailureClass = "hard"
	ClassSoft        FailureClass = "soft"
	ClassMock        FailureClass = "mock"
	ClassConfig      FailureClass = "config"
	ClassInternal    FailureClass = "internal"
)

var codeClasses = map[ErrorCode]FailureClass{
	ErrCodeConfigLoad:         ClassConfig,
	ErrCodeConfigParse:        ClassConfig,
	ErrCodeConfigInvalid:      ClassConfig,
	ErrCodeScenarioInvalid:    ClassConfig,
	ErrCodePatternInvalid:     ClassConfig,
	ErrCodeFixtureInvalid:     ClassConfig,
	ErrCodeEngineLaunch:       ClassEnvironment,
	ErrCodeBaseURLUnreachable: ClassEnvironment,
	ErrCodeNavigationTimeout:  ClassHard,
	ErrCodeNavigationFailed:   ClassHard,
	ErrCodeSessionClosed:      ClassHard,
	ErrCodeLocatorTimeout:     ClassSoft,
	ErrCodeLocatorAmbiguous:   ClassSoft,
	ErrCodeAssertionFailed:    ClassSoft,
	ErrCodeResponderFailed:    ClassMock,
	ErrCodeArtifactWrite:      ClassSoft,
}

// Error represents a structured harness error
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Stack       []Frame
	Retryable   bool
	UserMessage string
	Remediation []string
}

// Frame represents a stack frame
type Frame struct {
	Function string
	File     string
	Line     int
}

// New creates a new structured error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Context:   make(map[string]any),
		Stack:     captureStack(2), // Skip New and caller
		Retryable: false,
	}
}

// Newf creates a structured error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]any),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with harness error context
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
		Stack:      captureStack(2),
		Retryable:  false,
	}
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRetryable marks the error as retryable
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithUserMessage sets the human-friendly message shown in the run summary.
func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// WithRemediation appends actionable remediation tips for the error.
func (e *Error) WithRemediation(tips ...string) *Error {
	if len(tips) == 0 {
		return e
	}
	e.Remediation = append([]string{}, tips...)
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, e.Context[k]))
		}
		sb.WriteString("}")
	}

	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// Class returns the failure class of the error code.
func (e *Error) Class() FailureClass {
	if class, ok := codeClasses[e.Code]; ok {
		return class
	}
	return ClassInternal
}

// StackTrace returns a formatted stack trace
func (e *Error) StackTrace() string {
	var sb strings.Builder

	sb.WriteString("Stack trace:\n")
	for i, frame := range e.Stack {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, frame.String()))
		sb.WriteString(fmt.Sprintf("     %s:%d\n", frame.File, frame.Line))
	}

	return sb.String()
}

// String formats a stack frame
func (f Frame) String() string {
	return f.Function
}

// captureStack captures the current call stack
func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr

	n := runtime.Callers(skip+1, pcs[:])
	frames := make([]Frame, 0, n)

	for i := 0; i < n; i++ {
		pc := pcs[i]
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		file, line := fn.FileLine(pc)

		frames = append(frames, Frame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

// as finds the first *Error in the chain.
func as(err error) (*Error, bool) {
	var structured *Error
	if stderrors.As(err, &structured) {
		return structured, true
	}
	return nil, false
}

// IsCode checks if an error has a specific error code anywhere in its chain,
// including structured errors wrapped by other structured errors.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		structured, ok := as(err)
		if !ok {
			return false
		}
		if structured.Code == code {
			return true
		}
		err = structured.Underlying
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	structured, ok := as(err)
	if !ok {
		return ErrCodeInternal
	}

	return structured.Code
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	structured, ok := as(err)
	if !ok {
		return false
	}

	return structured.Retryable
}

// Class reports the failure class for any error. Errors without a structured
// code are internal.
func Class(err error) FailureClass {
	if err == nil {
		return ClassNone
	}
	structured, ok := as(err)
	if !ok {
		return ClassInternal
	}
	return structured.Class()
}
