package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/kasir/internal/domain"
)

// Process exit codes. A refused sale exits 1; a command that could not
// start (bad flags, config, database) exits 2.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries the exit code a command wants main to use.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope every --format json command prints.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"` // domain code such as INSUFFICIENT_PAYMENT
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrCodeGeneric stands in for errors without a domain code.
const ErrCodeGeneric = "ERROR"

// OutputFormatter writes command results as a JSON envelope or as text.
// Diagnostics go to ErrWriter when it is set so JSON stdout stays clean.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success prints data, using its default text form outside JSON mode.
func (f *OutputFormatter) Success(data any) error {
	return f.Result(data, func(w io.Writer) { fmt.Fprintln(w, data) })
}

// Result prints data in JSON mode and otherwise lets text render it.
func (f *OutputFormatter) Result(data any, text func(w io.Writer)) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Error prints a failure. Details appear in text mode only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail prints err and returns the ExitError for the command to return.
// A *domain.Error keeps its code and details in the output.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, msg := ErrCodeGeneric, err.Error()
	var details any
	var de *domain.Error
	if errors.As(err, &de) {
		code, msg = de.Code, de.Message
		if de.Err != nil {
			msg += ": " + de.Err.Error()
		}
		if len(de.Details) > 0 {
			details = de.Details
		}
	}
	_ = f.Error(code, msg, details)
	return WrapExitError(ExitFailure, message, err)
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
