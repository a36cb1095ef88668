// Package synth learns a new rule for a line that no stored rule matches.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/groktime-project/groktime/internal/core"
	"github.com/groktime-project/groktime/internal/grok"
	"github.com/groktime-project/groktime/internal/oracle"
)

// MaxAttempts bounds oracle round trips per line.
const MaxAttempts = 3

// Rejection reasons.
const (
	ReasonTransport = "transport"
	ReasonSchema    = "schema"
	ReasonCompile   = "compile"
	ReasonLint      = "lint"
	ReasonNoMatch   = "no_match"
)

// Store is where accepted rules are persisted.
type Store interface {
	Append(def string) (int, error)
}

// Initializer hands out a ready oracle. *oracle.Lazy implements it.
type Initializer interface {
	Ensure() (oracle.Oracle, error)
}

// Observer is told about learned rules and rejected candidates. Observers
// must not block; they run on the synthesis path.
type Observer interface {
	RuleLearned(core.LearnedRule)
	AttemptRejected(core.Rejection)
}

// Loop runs bounded synthesis for one line at a time.
type Loop struct {
	oracle    Initializer
	compiler  *grok.Compiler
	store     Store
	vocab     core.Vocabulary
	strict    bool
	observers []Observer
	metrics   *core.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithStrict enables Lint on every compiled candidate.
func WithStrict(strict bool) Option { return func(l *Loop) { l.strict = strict } }

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// WithMetrics records attempt outcomes and learned rules on m.
func WithMetrics(m *core.Metrics) Option { return func(l *Loop) { l.metrics = m } }

// WithLogger sets the logger; learned rules are logged at info.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logger.With().Str("component", "synth").Logger() }
}

// NewLoop builds a loop. Strict linting is on unless turned off.
func NewLoop(o Initializer, compiler *grok.Compiler, store Store, vocab core.Vocabulary, opts ...Option) *Loop {
	l := &Loop{
		oracle:   o,
		compiler: compiler,
		store:    store,
		vocab:    vocab,
		strict:   true,
		metrics:  core.NopMetrics(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type candidate struct {
	resp    oracle.Response
	matcher *grok.Matcher
	fields  core.Fields
}

// Synthesize asks the oracle for a rule that parses line, at most
// MaxAttempts times. The first candidate that is well formed and matches
// line is appended to the store and to rules, and its fields are returned.
//
// Errors: core.ErrOracleUnavailable when the oracle cannot be initialized
// (no attempt is made), *core.RuleStoreIOError when persisting fails (fatal),
// the context error on cancellation, and *core.SynthesisExhaustedError when
// every attempt was rejected.
func (l *Loop) Synthesize(ctx context.Context, line core.LogLine, rules *grok.RuleSet) (core.Fields, error) {
	impl, err := l.oracle.Ensure()
	if err != nil {
		return nil, err
	}

	var last error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c, err := l.attempt(ctx, impl, line)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			last = err
			l.reject(ctx, line, attempt, err)
			continue
		}

		l.metrics.SynthesisAttempt(ctx, "accepted")
		idx, err := l.store.Append(c.resp.Pattern)
		if err != nil {
			return nil, err
		}
		rules.Extend(c.matcher)

		learned := core.LearnedRule{
			ID:        uuid.NewString(),
			Index:     idx,
			Pattern:   c.resp.Pattern,
			Note:      c.resp.Note,
			Line:      line.Index,
			Text:      line.Text,
			Attempts:  attempt,
			LearnedAt: l.now().UTC(),
		}
		l.metrics.RuleLearned(ctx)
		l.logger.Info().
			Int("line", line.Index).
			Int("rule", idx).
			Int("attempt", attempt).
			Str("pattern", c.resp.Pattern).
			Msg("learned new rule")
		for _, o := range l.observers {
			o.RuleLearned(learned)
		}
		return c.fields, nil
	}

	return nil, &core.SynthesisExhaustedError{Line: line.Index, Attempts: MaxAttempts, Last: last}
}

func (l *Loop) attempt(ctx context.Context, impl oracle.Oracle, line core.LogLine) (*candidate, error) {
	raw, err := impl.Suggest(ctx, oracle.Request{Line: line.Text, Vocabulary: l.vocab})
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	resp, err := oracle.ParseResponse(raw, l.vocab)
	if err != nil {
		return nil, err
	}
	m, err := l.compiler.Compile(resp.Pattern)
	if err != nil {
		return nil, err
	}
	if l.strict {
		if err := Lint(m); err != nil {
			return nil, err
		}
	}
	fields, ok := m.Match(line.Text)
	if !ok {
		return nil, &core.NoMatchError{Pattern: resp.Pattern, Line: line.Index}
	}
	return &candidate{resp: resp, matcher: m, fields: fields}, nil
}

func (l *Loop) reject(ctx context.Context, line core.LogLine, attempt int, err error) {
	reason := Reason(err)
	l.metrics.SynthesisAttempt(ctx, reason)
	l.logger.Debug().
		Err(err).
		Int("line", line.Index).
		Int("attempt", attempt).
		Str("reason", reason).
		Msg("candidate rejected")

	r := core.Rejection{
		ID:      uuid.NewString(),
		Line:    line.Index,
		Attempt: attempt,
		Reason:  reason,
		Error:   err.Error(),
		At:      l.now().UTC(),
	}
	var ce *core.CompileError
	var nm *core.NoMatchError
	switch {
	case errors.As(err, &ce):
		r.Pattern = ce.Pattern
	case errors.As(err, &nm):
		r.Pattern = nm.Pattern
	}
	for _, o := range l.observers {
		o.AttemptRejected(r)
	}
}

// Reason classifies a rejected attempt.
func Reason(err error) string {
	var ce *core.CompileError
	switch {
	case errors.Is(err, core.ErrOracleSchema):
		return ReasonSchema
	case errors.As(err, &ce):
		if strings.HasPrefix(ce.Reason, "lint") {
			return ReasonLint
		}
		return ReasonCompile
	case errors.Is(err, core.ErrNoMatch):
		return ReasonNoMatch
	default:
		return ReasonTransport
	}
}
