package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/factory/pkg/factory"
)

// Document is the shape of CUE and YAML definition files.
type Document struct {
	Factories map[string]Definition `json:"factories" yaml:"factories" validate:"required,min=1,dive,keys,required,endkeys"`
}

// Definition declares one factory.
type Definition struct {
	// Model is the model name. Empty means the file's base name.
	Model string `json:"model,omitempty" yaml:"model"`

	// Parent names the factory to inherit from.
	Parent string `json:"parent,omitempty" yaml:"parent"`

	// Attrs are literal attribute values.
	Attrs map[string]any `json:"attrs,omitempty" yaml:"attrs" validate:"omitempty,dive,keys,required,endkeys"`

	// Sequences maps attribute names to auto-increment steps.
	Sequences map[string]float64 `json:"sequences,omitempty" yaml:"sequences" validate:"omitempty,dive,keys,required,endkeys,gte=1"`
}

func (l *Loader) applyCUE(u *unit, data []byte) error {
	val := l.cue.CompileBytes(data, cue.Filename(u.path))
	if err := val.Err(); err != nil {
		return fmt.Errorf("cue compile failed: %s", formatCUEErrors(err))
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("cue validation failed: %s", formatCUEErrors(err))
	}

	raw, err := val.MarshalJSON()
	if err != nil {
		return fmt.Errorf("cue export failed: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return l.applyDocument(u, &doc)
}

func (l *Loader) applyYAML(u *unit, data []byte) error {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	return l.applyDocument(u, &doc)
}

// applyDocument validates doc and defines its factories in name order.
func (l *Loader) applyDocument(u *unit, doc *Document) error {
	if err := l.validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid definition: %s", formatValidationErrors(err))
	}

	names := make([]string, 0, len(doc.Factories))
	for name := range doc.Factories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := doc.Factories[name]

		var f *factory.Factory
		if def.Model != "" {
			f = u.define(name, def.Model)
		} else {
			f = u.define(name)
		}

		for _, attr := range attrNames(def) {
			var opts []factory.AttrOption
			if step, ok := def.Sequences[attr]; ok {
				opts = append(opts, factory.AutoIncrement(step))
			}
			f.Attr(attr, normalize(def.Attrs[attr]), opts...)
		}

		if def.Parent != "" {
			u.addParent(f, def.Parent)
		}
	}
	return nil
}

// attrNames returns the union of attribute and sequence names, sorted.
func attrNames(def Definition) []string {
	seen := make(map[string]bool, len(def.Attrs)+len(def.Sequences))
	var names []string
	for name := range def.Attrs {
		seen[name] = true
		names = append(names, name)
	}
	for name := range def.Sequences {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// normalize converts decoded document values to int64, float64, string,
// bool, []any and map[string]any.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func formatCUEErrors(err error) string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s: %s", pos, msg)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}

func formatValidationErrors(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
