// Package outcome implements the error taxonomy and exit-code contract of
// spec.md §6 (CLI surface) and §7 (error handling design). Every exported
// operation in cass returns a plain error; the CLI layer downcasts to
// *Outcome to pick an exit code and render the structured envelope.
package outcome

import "fmt"

// Code is the process exit code for a given Kind.
type Code int

const (
	CodeOK                   Code = 0
	CodeHealthFail           Code = 1
	CodeUsage                Code = 2
	CodeIndexMissing         Code = 3
	CodeNetwork              Code = 4
	CodeDataCorrupt          Code = 5
	CodeIncompatibleVersion  Code = 6
	CodeBusy                 Code = 7
	CodePartial              Code = 8
	CodeUnknown              Code = 9
)

// Kind is the taxonomy name carried in the structured error envelope.
type Kind string

const (
	KindOK                  Kind = "ok"
	KindHealthFail          Kind = "health_fail"
	KindUsage               Kind = "usage"
	KindIndexMissing        Kind = "index_missing"
	KindNetwork             Kind = "network"
	KindDataCorrupt         Kind = "data_corrupt"
	KindIncompatibleVersion Kind = "incompatible_version"
	KindBusy                Kind = "busy"
	KindPartial             Kind = "partial"
	KindUnknown             Kind = "unknown"
)

var kindToCode = map[Kind]Code{
	KindOK:                  CodeOK,
	KindHealthFail:          CodeHealthFail,
	KindUsage:               CodeUsage,
	KindIndexMissing:        CodeIndexMissing,
	KindNetwork:             CodeNetwork,
	KindDataCorrupt:         CodeDataCorrupt,
	KindIncompatibleVersion: CodeIncompatibleVersion,
	KindBusy:                CodeBusy,
	KindPartial:             CodePartial,
	KindUnknown:             CodeUnknown,
}

var retryable = map[Kind]bool{
	KindNetwork: true,
	KindBusy:    true,
	KindPartial: true,
	KindUnknown: false,
}

// Outcome is a structured, user-facing error. It implements error.
type Outcome struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Hint      string `json:"hint"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

func (o *Outcome) Error() string {
	if o.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", o.Kind, o.Message, o.Hint)
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Message)
}

func (o *Outcome) Unwrap() error { return o.Cause }

// Code returns the process exit code for this outcome's Kind.
func (o *Outcome) Code() Code { return kindToCode[o.Kind] }

// New builds an Outcome for kind with a message and actionable hint.
func New(kind Kind, hint, format string, args ...any) *Outcome {
	return &Outcome{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Hint:      hint,
		Retryable: retryable[kind],
	}
}

// Wrap attaches kind/hint to an underlying error, preserving it via Unwrap.
func Wrap(kind Kind, hint string, err error) *Outcome {
	if err == nil {
		return nil
	}
	return &Outcome{
		Kind:      kind,
		Message:   err.Error(),
		Hint:      hint,
		Retryable: retryable[kind],
		Cause:     err,
	}
}

// As extracts an *Outcome from err, falling back to KindUnknown for any
// plain error that escaped classification.
func As(err error) *Outcome {
	if err == nil {
		return nil
	}
	if o, ok := err.(*Outcome); ok {
		return o
	}
	return &Outcome{
		Kind:      KindUnknown,
		Message:   err.Error(),
		Hint:      "an unexpected error occurred; re-run with --verbose for detail",
		Retryable: false,
		Cause:     err,
	}
}

// Convenience constructors for the taxonomy rows in spec.md §7.

func HealthFail(format string, args ...any) *Outcome {
	return New(KindHealthFail, "check that the data directory is accessible", format, args...)
}

func Usage(hint, format string, args ...any) *Outcome {
	return New(KindUsage, hint, format, args...)
}

func IndexMissing(format string, args ...any) *Outcome {
	return New(KindIndexMissing, "run `cass index --full` to build the store and index", format, args...)
}

func Network(format string, args ...any) *Outcome {
	return New(KindNetwork, "check connectivity to the remote source and retry", format, args...)
}

func DataCorrupt(format string, args ...any) *Outcome {
	return New(KindDataCorrupt, "run `cass doctor --fix --force-rebuild`", format, args...)
}

func IncompatibleVersion(format string, args ...any) *Outcome {
	return New(KindIncompatibleVersion, "the store will be rebuilt automatically on next index run", format, args...)
}

func Busy(format string, args ...any) *Outcome {
	return New(KindBusy, "another indexer holds the writer lock; retry shortly", format, args...)
}

func Partial(format string, args ...any) *Outcome {
	return New(KindPartial, "re-run the query or increase --timeout", format, args...)
}

func Unknown(err error) *Outcome {
	return Wrap(KindUnknown, "re-run with --verbose for detail", err)
}
