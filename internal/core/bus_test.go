package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

func embeddedBus(t *testing.T) *RecordBus {
	t.Helper()
	cfg := &BusConfig{
		Enabled:       true,
		Embedded:      true,
		Port:          -1,
		DataDir:       t.TempDir(),
		SubjectPrefix: "gt-test",
	}
	bus, err := NewRecordBus(cfg, "run-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecordBus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func subscribe(t *testing.T, bus *RecordBus, subject string) *nats.Subscription {
	t.Helper()
	nc, err := nats.Connect(bus.ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return sub
}

func TestRecordBus_EmitRecord(t *testing.T) {
	bus := embeddedBus(t)
	sub := subscribe(t, bus, bus.RecordSubject())

	rec := NewEventRecord(4, 0, map[string]interface{}{"host": "web01", "pid": 42})
	rec.Timestamp = &Timestamp{Epoch: 1696946136, Normalized: true}
	if err := bus.EmitRecord(rec); err != nil {
		t.Fatalf("EmitRecord: %v", err)
	}

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if got := msg.Header.Get("Groktime-Line"); got != "4" {
		t.Errorf("Groktime-Line = %q, want 4", got)
	}
	if got := msg.Header.Get("Groktime-Run"); got != "run-1" {
		t.Errorf("Groktime-Run = %q, want run-1", got)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if body["host"] != "web01" {
		t.Errorf("host = %v, want web01", body["host"])
	}
	if body["timestamp"] != float64(1696946136) {
		t.Errorf("timestamp = %v, want epoch", body["timestamp"])
	}

	published, failed := bus.Stats()
	if published != 1 || failed != 0 {
		t.Errorf("Stats = (%d, %d), want (1, 0)", published, failed)
	}
}

func TestRecordBus_RuleLearned(t *testing.T) {
	bus := embeddedBus(t)
	sub := subscribe(t, bus, bus.RuleSubject())

	bus.RuleLearned(LearnedRule{ID: "r1", Index: 3, Pattern: "%{INT:pid}", Line: 9, Attempts: 1})

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	var rule LearnedRule
	if err := json.Unmarshal(msg.Data, &rule); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if rule.Index != 3 || rule.Pattern != "%{INT:pid}" {
		t.Errorf("rule = %+v", rule)
	}
}

func TestRecordBus_SubjectPrefixDefault(t *testing.T) {
	b := &RecordBus{prefix: "groktime"}
	if b.RecordSubject() != "groktime.records" {
		t.Errorf("RecordSubject = %q", b.RecordSubject())
	}
	if b.RuleSubject() != "groktime.rules.learned" {
		t.Errorf("RuleSubject = %q", b.RuleSubject())
	}
}
