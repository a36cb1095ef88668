package oracle

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/groktime-project/groktime/internal/core"
)

// Environment variables read for API keys, in addition to oracle.api_keys.
var (
	OpenAIKeyEnv = []string{"OPENAI_API_KEY"}
	GeminiKeyEnv = []string{"GEMINI_API_KEY", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3", "GEMINI_API_KEY_4"}
)

// FromConfig returns a Factory for the configured provider. Keys and
// environment are read when the factory runs, not when it is built.
func FromConfig(cfg core.OracleConfig, logger zerolog.Logger) Factory {
	return func() (Oracle, error) {
		switch cfg.Provider {
		case "openai", "":
			o, err := NewOpenAI(cfg, CollectAPIKeys(cfg.APIKeys, OpenAIKeyEnv...), logger)
			if err != nil {
				return nil, err
			}
			return o, nil
		case "gemini":
			g, err := NewGemini(cfg, CollectAPIKeys(cfg.APIKeys, GeminiKeyEnv...), logger)
			if err != nil {
				return nil, err
			}
			return g, nil
		default:
			return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
		}
	}
}
