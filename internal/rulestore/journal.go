package rulestore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/groktime-project/groktime/internal/core"
)

var (
	bucketRules      = []byte("rules")
	bucketRejections = []byte("rejections")
)

// Journal records learned rules and rejected candidates in a BoltDB file.
// It is an audit trail: the JSON rule file stays the source of truth.
type Journal struct {
	db     *bbolt.DB
	logger zerolog.Logger
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string, logger zerolog.Logger) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRules, bucketRejections} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal buckets: %w", err)
	}
	return &Journal{
		db:     db,
		logger: logger.With().Str("component", "journal").Logger(),
	}, nil
}

// RuleLearned records rule. Failures are logged; the journal never fails a run.
func (j *Journal) RuleLearned(rule core.LearnedRule) {
	if err := j.put(bucketRules, rule); err != nil {
		j.logger.Error().Err(err).Int("rule", rule.Index).Msg("failed to journal learned rule")
	}
}

// AttemptRejected records a rejected candidate.
func (j *Journal) AttemptRejected(r core.Rejection) {
	if err := j.put(bucketRejections, r); err != nil {
		j.logger.Error().Err(err).Int("line", r.Line).Msg("failed to journal rejection")
	}
}

// Rules returns learned rules in the order they were recorded.
func (j *Journal) Rules() ([]core.LearnedRule, error) {
	var out []core.LearnedRule
	err := j.each(bucketRules, func(v []byte) error {
		var r core.LearnedRule
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// Rejections returns rejected candidates in the order they were recorded.
func (j *Journal) Rejections() ([]core.Rejection, error) {
	var out []core.Rejection
	err := j.each(bucketRejections, func(v []byte) error {
		var r core.Rejection
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) put(bucket []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

func (j *Journal) each(bucket []byte, fn func([]byte) error) error {
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, v []byte) error {
			return fn(v)
		})
	})
}
