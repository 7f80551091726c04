package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/openfroyo/factory/pkg/factory"
	"github.com/openfroyo/factory/pkg/telemetry"
)

// DefaultDir is the directory Load reads when none is given.
const DefaultDir = "test/factories"

// Format identifies a definition file type.
type Format string

const (
	FormatStarlark Format = "starlark"
	FormatCUE      Format = "cue"
	FormatYAML     Format = "yaml"
	FormatHCL      Format = "hcl"
)

// FormatOf returns the format for path's extension, or "" when the file is
// not a definition file.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".star":
		return FormatStarlark
	case ".cue":
		return FormatCUE
	case ".yaml", ".yml":
		return FormatYAML
	case ".hcl":
		return FormatHCL
	default:
		return ""
	}
}

// Loader reads definition files into a registry.
type Loader struct {
	// mu serializes loads; cue.Context is not safe for concurrent use.
	mu sync.Mutex

	registry *factory.Registry
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	timeout  time.Duration
	debounce time.Duration

	cue      *cue.Context
	validate *validator.Validate
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger.With().Str("component", "loader").Logger()
	}
}

// WithMetrics counts loaded files on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithTimeout bounds the execution of a single Starlark file.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithDebounce sets how long Watch waits for further changes before reloading.
func WithDebounce(d time.Duration) Option {
	return func(l *Loader) {
		l.debounce = d
	}
}

// New creates a loader that defines factories in reg.
func New(reg *factory.Registry, opts ...Option) *Loader {
	l := &Loader{
		registry: reg,
		logger:   zerolog.Nop(),
		timeout:  10 * time.Second,
		debounce: 250 * time.Millisecond,
		cue:      cuecontext.New(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry factories are defined in.
func (l *Loader) Registry() *factory.Registry {
	return l.registry
}

// Load reads every definition file directly inside dir and returns how many
// files were processed. Subdirectories are not entered.
func (l *Loader) Load(ctx context.Context, dir string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, dir)
}

// Reload clears the registry and loads dir again.
func (l *Loader) Reload(ctx context.Context, dir string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.registry.Reset()
	return l.load(ctx, dir)
}

func (l *Loader) load(ctx context.Context, dir string) (int, error) {
	if dir == "" {
		dir = DefaultDir
	}

	files, err := DefinitionFiles(dir)
	if err != nil {
		return 0, err
	}

	var links []parentLink
	count := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		format := FormatOf(path)
		fileLinks, err := l.loadFile(ctx, path, format)
		l.metrics.RecordLoad(string(format), err == nil)
		if err != nil {
			return count, fmt.Errorf("failed to load %s: %w", path, err)
		}

		links = append(links, fileLinks...)
		count++

		l.logger.Debug().
			Str("file", path).
			Str("format", string(format)).
			Msg("definition file loaded")
	}

	if err := l.resolveParents(links); err != nil {
		return count, err
	}

	l.logger.Info().
		Str("dir", dir).
		Int("files", count).
		Int("factories", l.registry.Len()).
		Msg("factories loaded")

	return count, nil
}

// DefinitionFiles lists the definition files directly inside dir in name
// order. Dotfiles, directories and unknown extensions are skipped.
func DefinitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || FormatOf(name) == "" {
			continue
		}

		path := filepath.Join(dir, name)
		// Stat follows symlinks.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, format Format) ([]parentLink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	u := &unit{
		path:   path,
		define: l.registry.Definer(modelNameOf(path)),
	}

	switch format {
	case FormatStarlark:
		err = l.execStarlark(ctx, u, data)
	case FormatCUE:
		err = l.applyCUE(u, data)
	case FormatYAML:
		err = l.applyYAML(u, data)
	case FormatHCL:
		err = l.applyHCL(u, data)
	default:
		err = fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return u.links, nil
}

// modelNameOf returns the file name without directory and extension.
func modelNameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// unit collects what one file defines.
type unit struct {
	path   string
	define factory.DefineFunc
	links  []parentLink
}

func (u *unit) addParent(child *factory.Factory, parent string) {
	u.links = append(u.links, parentLink{
		child:  child,
		parent: parent,
		path:   u.path,
	})
}

type parentLink struct {
	child  *factory.Factory
	parent string
	path   string
}

// resolveParents applies links parents first. A link is applied once its
// parent has no unapplied links of its own.
func (l *Loader) resolveParents(links []parentLink) error {
	pending := make(map[string]int)
	for _, link := range links {
		pending[link.child.Name()]++
	}

	done := make([]bool, len(links))
	remaining := len(links)
	for remaining > 0 {
		progress := false
		for i, link := range links {
			if done[i] || pending[link.parent] > 0 {
				continue
			}
			if _, err := link.child.ParentE(link.parent); err != nil {
				return fmt.Errorf("%s: factory %q: %w", link.path, link.child.Name(), err)
			}
			done[i] = true
			pending[link.child.Name()]--
			remaining--
			progress = true
		}
		if !progress {
			break
		}
	}

	if remaining == 0 {
		return nil
	}

	var stuck []string
	for i, link := range links {
		if !done[i] {
			stuck = append(stuck, fmt.Sprintf("%s -> %s", link.child.Name(), link.parent))
		}
	}
	return fmt.Errorf("parent cycle: %s", strings.Join(stuck, ", "))
}
