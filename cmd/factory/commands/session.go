package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/factory/pkg/config"
	"github.com/openfroyo/factory/pkg/factory"
	"github.com/openfroyo/factory/pkg/loader"
	"github.com/openfroyo/factory/pkg/telemetry"
)

// session wires a registry and loader to the configured telemetry.
type session struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	log      zerolog.Logger
	registry *factory.Registry
	loader   *loader.Loader
}

func newSession(args []string) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if factoriesDir != "" {
		cfg.FactoriesDir = factoriesDir
	}
	if len(args) > 0 && args[0] != "" {
		cfg.FactoriesDir = args[0]
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	log := tel.Logger.Zerolog()
	reg := factory.NewRegistry(
		factory.WithLogger(log),
		factory.WithMetrics(tel.Metrics),
		factory.WithTracer(tel.Tracer.Tracer()),
	)

	return &session{
		cfg:      cfg,
		tel:      tel,
		log:      tel.Logger.Component("cli").Zerolog(),
		registry: reg,
		loader:   loader.New(reg, loader.WithLogger(log), loader.WithMetrics(tel.Metrics)),
	}, nil
}

func (s *session) load(ctx context.Context) (int, error) {
	count, err := s.loader.Load(ctx, s.cfg.FactoriesDir)
	if err != nil {
		return count, fmt.Errorf("failed to load factories from %s: %w", s.cfg.FactoriesDir, err)
	}
	return count, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.tel.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

// parseOverrides turns key=value pairs into overrides. Values are read as
// YAML scalars or flow collections, so 42, true and [a, b] keep their type.
func parseOverrides(pairs []string) (factory.Attrs, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	overrides := make(factory.Attrs, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: expected key=value", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid override %q: %w", pair, err)
		}
		overrides[key] = value
	}
	return overrides, nil
}

// writeJSON prints v as one compact line with --json, indented otherwise.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !jsonOutput {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
