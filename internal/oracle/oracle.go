// Package oracle asks a language model for a grok pattern that parses a log
// line no stored rule matches.
package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/groktime-project/groktime/internal/core"
)

// Request is one synthesis question.
type Request struct {
	Line       string
	Vocabulary core.Vocabulary
}

// Response is a validated oracle answer.
type Response struct {
	Pattern string `json:"pattern"`
	Note    string `json:"note"`
}

// Oracle returns the raw response text for req. The text is validated by
// ParseResponse; providers do not interpret it.
type Oracle interface {
	Suggest(ctx context.Context, req Request) (string, error)
}

// Factory builds an Oracle. It is called at most once successfully per Lazy.
type Factory func() (Oracle, error)

// State is the initialization state of a Lazy oracle.
type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// Lazy defers building the provider client until the first line that needs
// synthesis, so runs where every line matches never touch credentials.
type Lazy struct {
	mu      sync.Mutex
	factory Factory
	impl    Oracle
	state   State
}

// NewLazy wraps factory.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Ensure initializes the oracle if needed. A failed initialization leaves
// the state Uninitialized and returns an error wrapping core.ErrOracleUnavailable.
func (l *Lazy) Ensure() (Oracle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateReady {
		return l.impl, nil
	}
	if l.factory == nil {
		return nil, fmt.Errorf("%w: no provider configured", core.ErrOracleUnavailable)
	}
	impl, err := l.factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrOracleUnavailable, err)
	}
	l.impl = impl
	l.state = StateReady
	return impl, nil
}

// State returns the current initialization state.
func (l *Lazy) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Suggest initializes on first use and forwards to the provider.
func (l *Lazy) Suggest(ctx context.Context, req Request) (string, error) {
	impl, err := l.Ensure()
	if err != nil {
		return "", err
	}
	return impl.Suggest(ctx, req)
}
