package oracle

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// How long a key rests after the provider refuses it.
const (
	rateLimitRest    = time.Minute
	quotaRest        = 10 * time.Minute
	invalidKeyRest   = 24 * time.Hour
	minAPIKeyLength  = 10
	maxKeysPerCall   = 4
	errorBodyLogSize = 500
)

// keyFault says how long the key that produced a failed response should
// rest, and why. A zero duration means the failure is not the key's fault
// and another key would fare no better.
type keyFault func(status int, body []byte) (time.Duration, string)

// keyRing hands out provider API keys in order, skipping keys that are
// resting after a rate limit, quota or auth failure.
type keyRing struct {
	mu     sync.Mutex
	keys   []string
	rest   []time.Time // key i is usable once now is past rest[i]
	cur    int
	now    func() time.Time
	logger zerolog.Logger
}

func newKeyRing(keys []string, logger zerolog.Logger) *keyRing {
	r := &keyRing{
		now:    time.Now,
		logger: logger.With().Str("component", "key_ring").Logger(),
	}
	for _, k := range keys {
		if k = strings.TrimSpace(k); len(k) >= minAPIKeyLength {
			r.keys = append(r.keys, k)
		}
	}
	r.rest = make([]time.Time, len(r.keys))
	return r
}

func (r *keyRing) size() int { return len(r.keys) }

// next returns the first usable key starting at the current one, or -1.
func (r *keyRing) next() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for i := 0; i < len(r.keys); i++ {
		j := (r.cur + i) % len(r.keys)
		if !now.Before(r.rest[j]) {
			r.cur = j
			return j, r.keys[j]
		}
	}
	return -1, ""
}

// bench rests key i for d and moves past it.
func (r *keyRing) bench(i int, d time.Duration, why string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rest[i] = r.now().Add(d)
	if r.cur == i {
		r.cur = (i + 1) % len(r.keys)
	}
	r.logger.Warn().
		Int("key_index", i+1).
		Str("reason", why).
		Dur("rest", d).
		Msg("API key benched")
}

// CollectAPIKeys merges configured keys with the values of envVars,
// trimmed and deduplicated, configured keys first.
func CollectAPIKeys(configured []string, envVars ...string) []string {
	keys := append([]string(nil), configured...)
	for _, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			keys = append(keys, val)
		}
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" && !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}
	return unique
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
