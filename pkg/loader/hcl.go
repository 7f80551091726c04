package loader

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclDocument is the shape of HCL definition files:
//
//	factory "user" {
//	  model     = "User"
//	  attrs     = { email = "user%d@example.com" }
//	  sequences = { id = 1, email = 1 }
//	}
type hclDocument struct {
	Factories []hclFactory `hcl:"factory,block"`
}

type hclFactory struct {
	Name      string             `hcl:"name,label"`
	Model     string             `hcl:"model,optional"`
	Parent    string             `hcl:"parent,optional"`
	Attrs     cty.Value          `hcl:"attrs,optional"`
	Sequences map[string]float64 `hcl:"sequences,optional"`
}

func (l *Loader) applyHCL(u *unit, data []byte) error {
	file, diags := hclparse.NewParser().ParseHCL(data, u.path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse hcl: %s", diags.Error())
	}

	var raw hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return fmt.Errorf("failed to decode hcl: %s", diags.Error())
	}

	doc := Document{Factories: make(map[string]Definition, len(raw.Factories))}
	for _, f := range raw.Factories {
		if _, dup := doc.Factories[f.Name]; dup {
			return fmt.Errorf("factory %q is declared twice", f.Name)
		}

		def := Definition{
			Model:     f.Model,
			Parent:    f.Parent,
			Sequences: f.Sequences,
		}
		if f.Attrs.Type() != cty.NilType && !f.Attrs.IsNull() {
			native, err := ctyToNative(f.Attrs)
			if err != nil {
				return fmt.Errorf("factory %q: %w", f.Name, err)
			}
			attrs, ok := native.(map[string]any)
			if !ok {
				return fmt.Errorf("factory %q: attrs must be an object", f.Name)
			}
			def.Attrs = attrs
		}
		doc.Factories[f.Name] = def
	}

	return l.applyDocument(u, &doc)
}

// ctyToNative converts v to int64, float64, string, bool, []any or
// map[string]any. Null and unknown values become nil.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			item, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			item, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = item
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
