package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/factory/pkg/factory"
)

const emailPolicy = `package factory.email

deny contains msg if {
	not endswith(input.attrs.email, "@example.com")
	msg := sprintf("%s: email %v is not a test address", [input.factory, input.attrs.email])
}
`

const activePolicy = `package factory.active

deny contains {"msg": "inactive record", "severity": "info"} if {
	input.attrs.active == false
}
`

func newTestEngine(t *testing.T, policies ...Policy) *Engine {
	t.Helper()
	e := NewEngine(zerolog.Nop())
	for _, p := range policies {
		if err := e.Add(context.Background(), p); err != nil {
			t.Fatalf("failed to add policy %s: %v", p.Name, err)
		}
	}
	return e
}

func TestEvaluate(t *testing.T) {
	e := newTestEngine(t,
		Policy{Name: "email", Rego: emailPolicy, Severity: SeverityError},
		Policy{Name: "active", Rego: activePolicy},
	)

	tests := []struct {
		name      string
		attrs     map[string]any
		wantCount int
		wantSev   Severity
	}{
		{
			name:      "clean",
			attrs:     map[string]any{"email": "a@example.com", "active": true},
			wantCount: 0,
		},
		{
			name:      "bad email",
			attrs:     map[string]any{"email": "a@real.org", "active": true},
			wantCount: 1,
			wantSev:   SeverityError,
		},
		{
			name:      "inactive",
			attrs:     map[string]any{"email": "a@example.com", "active": false},
			wantCount: 1,
			wantSev:   SeverityInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := e.Evaluate(context.Background(), Input{Factory: "user", Model: "user", Attrs: tt.attrs})
			if err != nil {
				t.Fatalf("evaluate failed: %v", err)
			}
			if len(violations) != tt.wantCount {
				t.Fatalf("expected %d violations, got %v", tt.wantCount, violations)
			}
			if tt.wantCount > 0 && violations[0].Severity != tt.wantSev {
				t.Fatalf("expected severity %s, got %s", tt.wantSev, violations[0].Severity)
			}
		})
	}
}

func TestAdd_Errors(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	if err := e.Add(context.Background(), Policy{Rego: emailPolicy}); err == nil {
		t.Fatal("expected error for unnamed policy")
	}
	if err := e.Add(context.Background(), Policy{Name: "broken", Rego: "package x\ndeny contains"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"email.rego":  "# Emails must be test addresses.\n# severity: error\n" + emailPolicy,
		"active.rego": activePolicy,
		"notes.md":    "not a policy",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	e := NewEngine(zerolog.Nop())
	count, err := e.LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 policies, got %d", count)
	}
	if got := strings.Join(e.Names(), ","); got != "active,email" {
		t.Fatalf("unexpected names %s", got)
	}

	cp := e.policies["email"]
	if cp.policy.Severity != SeverityError || cp.policy.Description != "Emails must be test addresses." {
		t.Fatalf("unexpected policy metadata %+v", cp.policy)
	}
}

func TestParseRegoFile_BadSeverity(t *testing.T) {
	if _, err := parseRegoFile("x.rego", "# severity: fatal\npackage x\n"); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}

func TestCheck(t *testing.T) {
	reg := factory.NewRegistry()
	reg.Define("user").
		Attr("email", "user%d@example.com", factory.AutoIncrement(true)).
		Attr("active", true)
	reg.Define("legacy", "user").
		Attr("email", "old@corp.example.org").
		Attr("active", false)

	e := newTestEngine(t,
		Policy{Name: "email", Rego: emailPolicy, Severity: SeverityError},
		Policy{Name: "active", Rego: activePolicy},
	)

	res, err := e.Check(context.Background(), reg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Factories != 2 || res.Policies != 2 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", res.Violations)
	}
	for _, v := range res.Violations {
		if v.Factory != "legacy" {
			t.Fatalf("unexpected violation %v", v)
		}
	}
	if res.Allowed() {
		t.Fatal("an error violation should not be allowed")
	}
}
