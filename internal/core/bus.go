package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// RecordBus publishes event records and learned rules to NATS JetStream.
type RecordBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	prefix string
	runID  string
	logger zerolog.Logger

	mu        sync.Mutex
	published int64
	failed    int64
}

// NewRecordBus connects to NATS. If cfg.Embedded is true, it starts an embedded server first.
func NewRecordBus(cfg *BusConfig, runID string, logger zerolog.Logger) (*RecordBus, error) {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "groktime"
	}
	bus := &RecordBus{
		prefix: prefix,
		runID:  runID,
		logger: logger.With().Str("component", "record_bus").Logger(),
	}

	url := cfg.URL
	if cfg.Embedded {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating NATS data dir: %w", err)
		}

		opts := &server.Options{
			Host:      "127.0.0.1",
			Port:      cfg.Port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}

		ns.Start()

		if !ns.ReadyForConnections(10 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}

		bus.ns = ns
		url = ns.ClientURL()
		bus.logger.Info().Str("url", url).Msg("embedded NATS server started")
	}

	nc, err := nats.Connect(url,
		nats.Name("groktime"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				bus.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
	)
	if err != nil {
		bus.shutdownServer()
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	bus.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	bus.js = js

	streamCfg := &nats.StreamConfig{
		Name:      "GROKTIME",
		Subjects:  []string{prefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour * 7,
		MaxBytes:  256 * 1024 * 1024,
		Storage:   nats.FileStorage,
		Discard:   nats.DiscardOld,
	}
	if _, err := js.AddStream(streamCfg); err != nil {
		// Stream may exist with a different config from an earlier run
		if _, updateErr := js.UpdateStream(streamCfg); updateErr != nil {
			bus.Close()
			return nil, fmt.Errorf("creating/updating stream: %w (original: %v)", updateErr, err)
		}
	}

	bus.logger.Info().Str("url", url).Str("prefix", prefix).Msg("connected to NATS JetStream")
	return bus, nil
}

// RecordSubject is the subject event records are published on.
func (b *RecordBus) RecordSubject() string { return b.prefix + ".records" }

// RuleSubject is the subject learned rules are published on.
func (b *RecordBus) RuleSubject() string { return b.prefix + ".rules.learned" }

// EmitRecord publishes one event record.
func (b *RecordBus) EmitRecord(rec EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	msg := nats.NewMsg(b.RecordSubject())
	msg.Data = data
	msg.Header.Set("Groktime-Line", strconv.Itoa(rec.Line))
	return b.publish(msg)
}

// RuleLearned publishes a learned rule. Publishing failures are logged, not returned:
// the rule is already persisted by the time observers run.
func (b *RecordBus) RuleLearned(rule LearnedRule) {
	data, err := json.Marshal(rule)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal learned rule")
		return
	}
	msg := nats.NewMsg(b.RuleSubject())
	msg.Data = data
	if err := b.publish(msg); err != nil {
		b.logger.Error().Err(err).Int("rule", rule.Index).Msg("failed to publish learned rule")
	}
}

// AttemptRejected is a no-op; rejections are only journaled.
func (b *RecordBus) AttemptRejected(Rejection) {}

func (b *RecordBus) publish(msg *nats.Msg) error {
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	if b.runID != "" {
		msg.Header.Set("Groktime-Run", b.runID)
	}
	if _, err := b.js.PublishMsg(msg); err != nil {
		b.mu.Lock()
		b.failed++
		b.mu.Unlock()
		return fmt.Errorf("publishing to %s: %w", msg.Subject, err)
	}
	b.mu.Lock()
	b.published++
	b.mu.Unlock()

	b.logger.Debug().Str("subject", msg.Subject).Msg("published")
	return nil
}

// Stats returns published and failed message counts.
func (b *RecordBus) Stats() (published, failed int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.failed
}

// Close drains the connection and stops the embedded server, if any.
func (b *RecordBus) Close() error {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.nc.Close()
		}
	}
	b.shutdownServer()
	return nil
}

func (b *RecordBus) shutdownServer() {
	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
		b.logger.Info().Msg("embedded NATS server stopped")
		b.ns = nil
	}
}
