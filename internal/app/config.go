package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/yungbote/scoolish-backend/internal/data/db"
	"github.com/yungbote/scoolish-backend/internal/jobs/pages"
	"github.com/yungbote/scoolish-backend/internal/jobs/worker"
	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/services"
)

// Config is the resolved process configuration. Each subsystem reads its own
// variables; LoadConfig only gathers them.
type Config struct {
	Addr            string
	LogMode         string
	CORSOrigins     []string
	AllowUserHeader bool
	AllowOrgSignup  bool
	MaxUploadBytes  int64
	RedisURL        string
	RedisAddr       string
	RedisChannel    string

	DB     db.Config
	Auth   services.AuthConfig
	LLM    llm.Config
	Worker worker.Config
	Pages  pages.RunConfig
	Otel   observability.OtelConfig
}

// LoadEnvFiles fills the environment from .env and, when path is set, a TOML
// file. Variables already present in the environment always win, so the
// order is: process env, .env, TOML.
func LoadEnvFiles(path string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		return nil
	}
	vars, err := readTOMLEnv(path)
	if err != nil {
		return err
	}
	for _, k := range sortedNames(vars) {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, vars[k]); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// readTOMLEnv flattens a TOML document into environment names: a key inside
// [postgres] named host becomes POSTGRES_HOST, top-level keys are upper-cased
// as is, arrays are joined with commas.
func readTOMLEnv(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	out := map[string]string{}
	if err := flattenTOML("", doc, out); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return out, nil
}

func flattenTOML(prefix string, m map[string]any, out map[string]string) error {
	for k, v := range m {
		name := strings.ToUpper(strings.TrimSpace(k))
		if prefix != "" {
			name = prefix + "_" + name
		}
		switch x := v.(type) {
		case map[string]any:
			if err := flattenTOML(name, x, out); err != nil {
				return err
			}
		case []any:
			parts := make([]string, 0, len(x))
			for _, item := range x {
				s, err := scalar(item)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				parts = append(parts, s)
			}
			out[name] = strings.Join(parts, ",")
		default:
			s, err := scalar(x)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			out[name] = s
		}
	}
	return nil
}

func scalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %T", v)
	}
}

func sortedNames(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func LoadConfig() Config {
	port := envutil.String("PORT", "8080")
	return Config{
		Addr:            envutil.String("HTTP_ADDR", ":"+port),
		LogMode:         envutil.String("LOG_MODE", "development"),
		CORSOrigins:     envutil.CSV("CORS_ORIGINS"),
		AllowUserHeader: envutil.Bool("AUTH_ALLOW_USER_HEADER", true),
		AllowOrgSignup:  envutil.Bool("ALLOW_ORG_SIGNUP", false),
		MaxUploadBytes:  int64(envutil.Int("MAX_UPLOAD_BYTES", 50<<20)),
		RedisURL:        envutil.String("REDIS_URL", ""),
		RedisAddr:       envutil.String("REDIS_ADDR", ""),
		RedisChannel:    envutil.String("REDIS_CHANNEL", "sse"),

		DB:     db.ConfigFromEnv(),
		Auth:   services.AuthConfigFromEnv(),
		LLM:    llm.ConfigFromEnv(),
		Worker: worker.ConfigFromEnv(),
		Pages:  pages.ConfigFromEnv(),
		Otel:   observability.OtelConfigFromEnv(),
	}
}
