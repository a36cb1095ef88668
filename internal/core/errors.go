package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below unwrap to these so callers can
// classify with errors.Is without caring about the details.
var (
	ErrCompile            = errors.New("pattern compile failed")
	ErrOracleSchema       = errors.New("oracle response violates schema")
	ErrNoMatch            = errors.New("pattern does not match line")
	ErrTimestampParse     = errors.New("timestamp not parseable")
	ErrRuleStoreIO        = errors.New("rule store I/O failed")
	ErrOracleUnavailable  = errors.New("synthesis oracle unavailable")
	ErrSynthesisExhausted = errors.New("synthesis attempts exhausted")
)

// CompileError reports a pattern definition that could not be turned into a matcher.
type CompileError struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compile %q: %s: %v", truncate(e.Pattern, 120), e.Reason, e.Err)
	}
	return fmt.Sprintf("compile %q: %s", truncate(e.Pattern, 120), e.Reason)
}

func (e *CompileError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCompile, e.Err}
	}
	return []error{ErrCompile}
}

// OracleSchemaError reports an oracle response with the wrong shape or an
// out-of-vocabulary field name.
type OracleSchemaError struct {
	Reason string
	Err    error
}

func (e *OracleSchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle schema: %s: %v", e.Reason, e.Err)
	}
	return "oracle schema: " + e.Reason
}

func (e *OracleSchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrOracleSchema, e.Err}
	}
	return []error{ErrOracleSchema}
}

// NoMatchError reports a compiled candidate that does not match the line it
// was synthesized for.
type NoMatchError struct {
	Pattern string
	Line    int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("candidate %q does not match line %d", truncate(e.Pattern, 120), e.Line)
}

func (e *NoMatchError) Unwrap() error { return ErrNoMatch }

// TimestampParseError is non-fatal; the raw value is kept.
type TimestampParseError struct {
	Value string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("unrecognized timestamp %q", e.Value)
}

func (e *TimestampParseError) Unwrap() error { return ErrTimestampParse }

// RuleStoreIOError is fatal to a run.
type RuleStoreIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *RuleStoreIOError) Error() string {
	return fmt.Sprintf("rule store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RuleStoreIOError) Unwrap() []error { return []error{ErrRuleStoreIO, e.Err} }

// SynthesisExhaustedError is returned after every attempt for a line failed.
type SynthesisExhaustedError struct {
	Line     int
	Attempts int
	Last     error
}

func (e *SynthesisExhaustedError) Error() string {
	return fmt.Sprintf("line %d: no usable pattern after %d attempts: %v", e.Line, e.Attempts, e.Last)
}

func (e *SynthesisExhaustedError) Unwrap() []error {
	if e.Last != nil {
		return []error{ErrSynthesisExhausted, e.Last}
	}
	return []error{ErrSynthesisExhausted}
}

// IsFatal reports whether err must abort the run instead of skipping a line.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRuleStoreIO)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
