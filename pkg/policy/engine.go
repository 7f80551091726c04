package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/factory/pkg/factory"
)

// Engine evaluates compiled policies against factory output.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

type compiledPolicy struct {
	policy *Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates an engine without policies.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy").Logger(),
	}
}

// Add compiles p and stores it under its name, replacing a policy of the
// same name.
func (e *Engine) Add(ctx context.Context, p Policy) error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}

	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", p.Name, err)
	}

	query, err := rego.New(
		rego.ParsedModule(module),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy %s: %w", p.Name, err)
	}

	e.mu.Lock()
	e.policies[p.Name] = &compiledPolicy{policy: &p, query: query}
	e.mu.Unlock()

	e.logger.Debug().
		Str("policy", p.Name).
		Str("package", module.Package.Path.String()).
		Msg("policy compiled")
	return nil
}

// LoadDir adds every .rego file directly inside dir and returns how many
// were added.
func (e *Engine) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read policy directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".rego" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return count, fmt.Errorf("failed to read policy: %w", err)
		}

		p, err := parseRegoFile(path, string(data))
		if err != nil {
			return count, err
		}
		if err := e.Add(ctx, p); err != nil {
			return count, err
		}
		count++
	}

	e.logger.Info().Str("dir", dir).Int("count", count).Msg("policies loaded")
	return count, nil
}

// parseRegoFile names the policy after the file and reads the description
// and severity from the leading comment block.
func parseRegoFile(path, src string) (Policy, error) {
	p := Policy{
		Name:     strings.TrimSuffix(filepath.Base(path), ".rego"),
		Rego:     src,
		Severity: SeverityWarning,
	}

	var desc []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if level, ok := strings.CutPrefix(text, "severity:"); ok {
			sev, err := ParseSeverity(strings.TrimSpace(level))
			if err != nil {
				return Policy{}, fmt.Errorf("%s: %w", path, err)
			}
			p.Severity = sev
			continue
		}
		if text != "" {
			desc = append(desc, text)
		}
	}
	p.Description = strings.Join(desc, " ")
	return p, nil
}

// Names returns the policy names in sorted order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate runs every policy against in.
func (e *Engine) Evaluate(ctx context.Context, in Input) ([]Violation, error) {
	var violations []Violation
	for _, name := range e.Names() {
		e.mu.RLock()
		cp := e.policies[name]
		e.mu.RUnlock()

		results, err := cp.query.Eval(ctx, rego.EvalInput(in))
		if err != nil {
			return nil, fmt.Errorf("policy %s: evaluation failed: %w", name, err)
		}

		for _, result := range results {
			for _, expr := range result.Expressions {
				denied, ok := expr.Value.([]any)
				if !ok {
					continue
				}
				for _, d := range denied {
					violations = append(violations, newViolation(cp.policy, in.Factory, d))
				}
			}
		}
	}
	return violations, nil
}

func newViolation(p *Policy, factoryName string, result any) Violation {
	v := Violation{
		Policy:   p.Name,
		Factory:  factoryName,
		Severity: p.Severity,
	}

	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]any:
		if msg, ok := r["msg"].(string); ok {
			v.Message = msg
		}
		if s, ok := r["severity"].(string); ok {
			if sev, err := ParseSeverity(s); err == nil {
				v.Severity = sev
			}
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}

// Check builds every factory of reg once and evaluates the result. Building
// advances sequences like any other build.
func (e *Engine) Check(ctx context.Context, reg *factory.Registry) (*Result, error) {
	res := &Result{Policies: len(e.Names())}

	for _, name := range reg.Names() {
		f, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		attrs, err := f.Build(nil)
		if err != nil {
			return nil, fmt.Errorf("factory %q: %w", name, err)
		}

		violations, err := e.Evaluate(ctx, Input{
			Factory: name,
			Model:   f.ModelID(),
			Attrs:   attrs,
		})
		if err != nil {
			return nil, err
		}
		res.Violations = append(res.Violations, violations...)
		res.Factories++
	}

	e.logger.Debug().
		Int("factories", res.Factories).
		Int("violations", len(res.Violations)).
		Msg("policy check finished")
	return res, nil
}
