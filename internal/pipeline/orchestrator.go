// Package pipeline drives one log source through matching, synthesis and
// timestamp normalization, one line at a time.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/groktime-project/groktime/internal/core"
	"github.com/groktime-project/groktime/internal/grok"
	"github.com/groktime-project/groktime/internal/timestamp"
)

// State is where a line is in its resolution.
type State int

const (
	StateInit State = iota
	StateMatching
	StateSynthesizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateMatching:
		return "matching"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure reasons.
const (
	ReasonBlank             = "blank"
	ReasonNoMatch           = "no_match"
	ReasonOracleUnavailable = "oracle_unavailable"
	ReasonExhausted         = "synthesis_exhausted"
)

// LineSource yields lines in order. *ingest.Reader implements it.
type LineSource interface {
	Next() (core.LogLine, bool)
	Err() error
}

// Synthesizer learns a rule for an unmatched line and extends rules with it.
// *synth.Loop implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, line core.LogLine, rules *grok.RuleSet) (core.Fields, error)
}

// Sink receives every record as it is produced. *core.RecordBus implements it.
type Sink interface {
	EmitRecord(core.EventRecord) error
}

// Failure is a skipped line.
type Failure struct {
	Line   int
	Reason string
	Err    error
}

// Result is the outcome of a run.
type Result struct {
	Records  map[int]core.EventRecord
	Failures []Failure
	Learned  int
	Lines    int
}

// Orchestrator owns the RuleSet for the duration of a run.
type Orchestrator struct {
	rules      *grok.RuleSet
	synth      Synthesizer
	normalizer *timestamp.Normalizer
	sinks      []Sink
	metrics    *core.Metrics
	logger     zerolog.Logger
	onState    func(line int, s State)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSynthesizer enables synthesis on a miss. Without one, unmatched lines fail.
func WithSynthesizer(s Synthesizer) Option { return func(o *Orchestrator) { o.synth = s } }

// WithSink adds a sink that receives every record.
func WithSink(s Sink) Option { return func(o *Orchestrator) { o.sinks = append(o.sinks, s) } }

// WithNormalizer replaces the default wall-clock, local-zone normalizer.
func WithNormalizer(n *timestamp.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithMetrics records line outcomes on m.
func WithMetrics(m *core.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithLogger sets the logger; lines that fail are logged at warn.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.With().Str("component", "pipeline").Logger() }
}

// WithStateHook is called on every state a line enters.
func WithStateHook(fn func(line int, s State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// New returns an orchestrator over rules.
func New(rules *grok.RuleSet, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:      rules,
		normalizer: timestamp.New(),
		metrics:    core.NopMetrics(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run resolves every line of src. Per-line failures are collected in the
// result; a rule store failure, a source read error or cancellation stops
// the run and is returned alongside the partial result.
func (o *Orchestrator) Run(ctx context.Context, src LineSource) (*Result, error) {
	res := &Result{Records: make(map[int]core.EventRecord)}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line, ok := src.Next()
		if !ok {
			break
		}
		res.Lines++
		o.metrics.LineRead(ctx)

		rec, learned, fail, err := o.resolve(ctx, line)
		if err != nil {
			o.logger.Error().Err(err).Int("line", line.Index).Msg("run aborted")
			return res, err
		}
		if learned {
			res.Learned++
		}
		if fail != nil {
			o.state(line.Index, StateFailed)
			o.metrics.LineFailed(ctx, fail.Reason)
			ev := o.logger.Warn().Int("line", line.Index).Str("reason", fail.Reason)
			if fail.Err != nil {
				ev = ev.Err(fail.Err)
			}
			ev.Msg("line skipped")
			res.Failures = append(res.Failures, *fail)
			continue
		}

		o.state(line.Index, StateDone)
		res.Records[line.Index] = *rec
		o.emit(*rec)
	}

	if err := src.Err(); err != nil {
		return res, err
	}

	o.logger.Info().
		Int("lines", res.Lines).
		Int("records", len(res.Records)).
		Int("failed", len(res.Failures)).
		Int("learned", res.Learned).
		Msg("run complete")
	return res, nil
}

// resolve returns a record, or a Failure for a skipped line, or a fatal error.
func (o *Orchestrator) resolve(ctx context.Context, line core.LogLine) (*core.EventRecord, bool, *Failure, error) {
	o.state(line.Index, StateInit)
	if strings.TrimSpace(line.Text) == "" {
		return nil, false, &Failure{Line: line.Index, Reason: ReasonBlank}, nil
	}

	o.state(line.Index, StateMatching)
	if fields, idx, ok := o.rules.TryMatchRule(line.Text); ok {
		o.metrics.LineMatched(ctx, "store")
		return o.record(line, idx, fields), false, nil, nil
	}

	if o.synth == nil {
		return nil, false, &Failure{Line: line.Index, Reason: ReasonNoMatch, Err: core.ErrNoMatch}, nil
	}

	o.state(line.Index, StateSynthesizing)
	fields, err := o.synth.Synthesize(ctx, line, o.rules)
	if err != nil {
		if core.IsFatal(err) {
			return nil, false, nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, nil, ctxErr
		}
		reason := ReasonExhausted
		if errors.Is(err, core.ErrOracleUnavailable) {
			reason = ReasonOracleUnavailable
		}
		return nil, false, &Failure{Line: line.Index, Reason: reason, Err: err}, nil
	}
	o.metrics.LineMatched(ctx, "synthesis")
	return o.record(line, o.rules.Len()-1, fields), true, nil, nil
}

func (o *Orchestrator) record(line core.LogLine, rule int, fields core.Fields) *core.EventRecord {
	rec := core.NewEventRecord(line.Index, rule, o.rules.Rule(rule).Convert(fields))
	if err := o.normalizer.Apply(&rec); err != nil {
		o.logger.Debug().Err(err).Int("line", line.Index).Msg("timestamp kept as captured")
	}
	return &rec
}

func (o *Orchestrator) emit(rec core.EventRecord) {
	for _, s := range o.sinks {
		if err := s.EmitRecord(rec); err != nil {
			o.logger.Warn().Err(err).Int("line", rec.Line).Msg("failed to emit record")
		}
	}
}

func (o *Orchestrator) state(line int, s State) {
	if o.onState != nil {
		o.onState(line, s)
	}
}
