package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies bootstrap failures.
type Kind int

const (
	KindNone Kind = iota
	ConfigurationMissing
	FetchFailure
	CompileFailure
	ExecutionFailure
	WidgetUnavailable
	ValidationFailure
)

var kindNames = [...]string{
	KindNone:             "None",
	ConfigurationMissing: "ConfigurationMissing",
	FetchFailure:         "FetchFailure",
	CompileFailure:       "CompileFailure",
	ExecutionFailure:     "ExecutionFailure",
	WidgetUnavailable:    "WidgetUnavailable",
	ValidationFailure:    "ValidationFailure",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Fatal reports whether the kind moves the current run to Failed.
// WidgetUnavailable degrades the run; ValidationFailure never reaches one.
func (k Kind) Fatal() bool {
	switch k {
	case ConfigurationMissing, FetchFailure, CompileFailure, ExecutionFailure:
		return true
	}
	return false
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrConfigurationMissing = errors.New("configuration name missing")
	ErrFetchFailure         = errors.New("configuration fetch failed")
	ErrCompileFailure       = errors.New("script compilation failed")
	ErrExecutionFailure     = errors.New("script execution failed")
	ErrWidgetUnavailable    = errors.New("chat widget unavailable")
	ErrValidationFailure    = errors.New("contact validation failed")

	// ErrSuperseded ends a run replaced by a newer Load.
	ErrSuperseded = errors.New("run superseded by a newer load")

	// ErrClosed is returned once the orchestrator has been closed.
	ErrClosed = errors.New("orchestrator closed")
)

func (k Kind) sentinel() error {
	switch k {
	case ConfigurationMissing:
		return ErrConfigurationMissing
	case FetchFailure:
		return ErrFetchFailure
	case CompileFailure:
		return ErrCompileFailure
	case ExecutionFailure:
		return ErrExecutionFailure
	case WidgetUnavailable:
		return ErrWidgetUnavailable
	case ValidationFailure:
		return ErrValidationFailure
	}
	return nil
}

// Error is a classified bootstrap failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
