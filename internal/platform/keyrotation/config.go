package keyrotation

import (
	"fmt"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeRedis Mode = "redis"
)

const DefaultCounterKey = "openai_key_index"

type Config struct {
	Keys       []string
	Endpoints  []string
	Mode       Mode
	RedisURL   string
	CounterKey string
}

// LoadFromEnv reads the paired AZURE_OPENAI_API_KEYS / AZURE_OPENAI_API_BASES
// lists and the rotation mode.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Keys:       envutil.CSV("AZURE_OPENAI_API_KEYS"),
		Endpoints:  envutil.CSV("AZURE_OPENAI_API_BASES"),
		Mode:       Mode(strings.ToLower(envutil.String("OPENAI_ROTATION_MODE", string(ModeLocal)))),
		RedisURL:   envutil.String("REDIS_URL", "redis://localhost:6379/0"),
		CounterKey: envutil.String("OPENAI_ROTATION_KEY", DefaultCounterKey),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Keys) == 0 || len(c.Endpoints) == 0 || len(c.Keys) != len(c.Endpoints) {
		return fmt.Errorf("AZURE_OPENAI_API_KEYS and AZURE_OPENAI_API_BASES must be set and have the same length (got %d keys, %d bases)", len(c.Keys), len(c.Endpoints))
	}
	switch c.Mode {
	case ModeLocal, ModeRedis:
	default:
		return fmt.Errorf("invalid OPENAI_ROTATION_MODE=%q (allowed: %q, %q)", c.Mode, ModeLocal, ModeRedis)
	}
	return nil
}
