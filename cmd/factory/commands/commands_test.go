package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/factory/pkg/factory"
)

const usersYAML = `factories:
  user:
    attrs:
      email: "user%d@example.com"
      active: true
    sequences:
      id: 1
      email: 1
  admin:
    parent: user
    attrs:
      role: admin
`

func writeDefinitions(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

// syncBuffer is safe for the concurrent writes made by watch callbacks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FACTORY_TELEMETRY_LOGGING_LEVEL", "error")

	out := &syncBuffer{}
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func decodeAll(t *testing.T, out string) []map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(out))
	var docs []map[string]any
	for dec.More() {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			t.Fatalf("failed to decode output %q: %v", out, err)
		}
		docs = append(docs, doc)
	}
	return docs
}

func TestListCommand(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"users.yaml": usersYAML})

	out, err := run(t, context.Background(), "list", dir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := "admin\tusers\nuser\tusers\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestBuildCommand(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"users.yaml": usersYAML})

	out, err := run(t, context.Background(), "build", "admin", "--dir", dir, "--json", "-n", "2", "--set", "role=owner")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	docs := decodeAll(t, out)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d: %s", len(docs), out)
	}
	for i, doc := range docs {
		n := float64(i + 1)
		if doc["id"] != n || doc["role"] != "owner" || doc["active"] != true {
			t.Fatalf("unexpected document %d: %v", i, doc)
		}
	}
	if docs[1]["email"] != "user2@example.com" {
		t.Fatalf("unexpected email %v", docs[1]["email"])
	}
}

func TestBuildCommand_Errors(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"users.yaml": usersYAML})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown factory", []string{"build", "nobody", "--dir", dir}, "undefined"},
		{"bad override", []string{"build", "user", "--dir", dir, "--set", "novalue"}, "expected key=value"},
		{"bad count", []string{"build", "user", "--dir", dir, "-n", "0"}, "--count"},
		{"missing dir", []string{"build", "user", "--dir", filepath.Join(dir, "nope")}, "failed to load factories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, context.Background(), tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateCommand_Memory(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"users.yaml": usersYAML})

	out, err := run(t, context.Background(), "create", "user", "--dir", dir, "--json", "--count", "3")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	docs := decodeAll(t, out)
	if len(docs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(docs))
	}
	if docs[2]["id"] != float64(3) || docs[2]["email"] != "user3@example.com" {
		t.Fatalf("unexpected record %v", docs[2])
	}
}

func TestCreateCommand_SQLite(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"posts.yaml": `factories:
  post:
    model: BlogPost
    attrs:
      title: "post-%d"
    sequences:
      title: 1
`})
	t.Setenv("FACTORY_STORE_DRIVER", "sqlite")
	t.Setenv("FACTORY_STORE_DSN", filepath.Join(t.TempDir(), "factory.db"))

	out, err := run(t, context.Background(), "create", "post", "--dir", dir, "--json", "-n", "2")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	docs := decodeAll(t, out)
	if len(docs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(docs))
	}
	if docs[1]["title"] != "post-2" {
		t.Fatalf("unexpected record %v", docs[1])
	}
	if id, ok := docs[0]["id"].(string); !ok || id == "" {
		t.Fatalf("expected a generated id, got %v", docs[0]["id"])
	}

	// A second run starts the sequence over; --truncate clears the table.
	out, err = run(t, context.Background(), "create", "post", "--dir", dir, "--json", "--truncate")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if docs := decodeAll(t, out); len(docs) != 1 || docs[0]["title"] != "post-1" {
		t.Fatalf("unexpected records %v", docs)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{
		"users.yaml": usersYAML,
		".draft.yaml": "not: [valid",
		"notes.txt":  "ignored",
	})

	out, err := run(t, context.Background(), "validate", dir, "--build")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if out != "1 files, 2 factories: ok\n" {
		t.Fatalf("unexpected output %q", out)
	}

	bad := writeDefinitions(t, map[string]string{"broken.star": `define("x").parent("missing")`})
	if _, err := run(t, context.Background(), "validate", bad); err == nil {
		t.Fatal("expected validate to fail on an undefined parent")
	}
}

func TestValidateCommand_Policy(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"users.yaml": usersYAML})
	policies := writeDefinitions(t, map[string]string{
		"role.rego": `# severity: error
package factory.role

deny contains msg if {
	input.attrs.role == "admin"
	msg := "admins are not allowed in fixtures"
}
`,
	})

	out, err := run(t, context.Background(), "validate", dir, "--policy", policies)
	if err == nil || !strings.Contains(err.Error(), "policy check failed") {
		t.Fatalf("expected policy failure, got %v", err)
	}
	if !strings.Contains(out, "[error] admin: admins are not allowed in fixtures (policy role)") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "1 files, 2 factories, 1 policies, 1 violations") {
		t.Fatalf("unexpected summary %q", out)
	}
}

func TestWatchCommand(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"users.yaml": usersYAML})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := run(t, ctx, "watch", dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !strings.Contains(out, "loaded 1 files, 2 factories") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"n=42", "ok=true", "name=ada", "tags=[a, b]", "empty="})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := factory.Attrs{
		"n":     42,
		"ok":    true,
		"name":  "ada",
		"tags":  []any{"a", "b"},
		"empty": nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got, err := parseOverrides(nil); err != nil || got != nil {
		t.Fatalf("expected nil overrides, got %v, %v", got, err)
	}
	if _, err := parseOverrides([]string{"=1"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}
