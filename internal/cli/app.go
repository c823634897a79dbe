// Package cli builds configured applications for the arbor commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/adapters/openai"
	redisstore "github.com/aretw0/arbor/internal/adapters/redis"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// Options are the command-line knobs shared by the commands.
type Options struct {
	LogLevel  string
	RedisAddr string
	Lenient   bool
}

// NewApp builds an App from the options plus the environment: a Redis run
// store when --redis is set, and an OpenAI generator when OPENAI_API_KEY
// is present.
func NewApp(opts Options, extra ...arbor.Option) (*arbor.App, error) {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}

	appOpts := []arbor.Option{
		arbor.WithLogger(logging.New(level)),
	}

	if opts.RedisAddr != "" {
		appOpts = append(appOpts, arbor.WithRunStore(redisstore.New(opts.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0)))
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		var genOpts []openai.Option
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			genOpts = append(genOpts, openai.WithModel(model))
		}
		appOpts = append(appOpts, arbor.WithGenerator(openai.New(key, genOpts...)))
	}

	if opts.Lenient {
		appOpts = append(appOpts, arbor.WithLenientReachability())
	}

	appOpts = append(appOpts, extra...)
	return arbor.New(appOpts...), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// ParseSeed converts --set key=value pairs into a seed context. Values are
// parsed as YAML scalars, so numbers and booleans keep their types.
func ParseSeed(pairs []string) (domain.Context, error) {
	seed := domain.Context{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		seed[key] = value
	}
	return seed, nil
}
