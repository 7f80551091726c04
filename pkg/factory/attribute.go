package factory

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
)

// Attrs is a plain attribute mapping.
type Attrs map[string]any

// ValueKind identifies how an attribute slot produces its value.
type ValueKind int

const (
	// ValueLiteral slots return a deep copy of a stored value.
	ValueLiteral ValueKind = iota

	// ValueGenerator slots call a function on every evaluation.
	ValueGenerator

	// ValueSequenced slots advance a counter and combine it with a base value.
	ValueSequenced
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueLiteral:
		return "literal"
	case ValueGenerator:
		return "generator"
	case ValueSequenced:
		return "sequenced"
	default:
		return "unknown"
	}
}

// Value is a single attribute slot.
type Value struct {
	kind    ValueKind
	literal any
	gen     func() (any, error)
	step    int64
}

// Literal wraps a fixed value.
func Literal(v any) Value {
	return Value{kind: ValueLiteral, literal: v}
}

// Generator wraps a function called once per evaluation.
func Generator(fn func() any) Value {
	return Value{
		kind: ValueGenerator,
		gen:  func() (any, error) { return fn(), nil },
	}
}

// GeneratorE wraps a function that may fail. A failure aborts the build.
func GeneratorE(fn func() (any, error)) Value {
	return Value{kind: ValueGenerator, gen: fn}
}

// Sequenced advances the attribute's counter by step on every evaluation and
// combines the new counter value with base. A non-positive step yields base
// unchanged.
func Sequenced(base any, step int64) Value {
	v := ValueOf(base)
	if step <= 0 {
		return v
	}
	return Value{
		kind:    ValueSequenced,
		literal: v.literal,
		gen:     v.gen,
		step:    step,
	}
}

// ValueOf converts x into a Value. Go functions without arguments become
// generators; everything else is a literal.
func ValueOf(x any) Value {
	switch fn := x.(type) {
	case Value:
		return fn
	case func() any:
		return Generator(fn)
	case func() (any, error):
		return GeneratorE(fn)
	case func() string:
		return GeneratorE(func() (any, error) { return fn(), nil })
	case func() int:
		return GeneratorE(func() (any, error) { return fn(), nil })
	case func() int64:
		return GeneratorE(func() (any, error) { return fn(), nil })
	case func() float64:
		return GeneratorE(func() (any, error) { return fn(), nil })
	case func() bool:
		return GeneratorE(func() (any, error) { return fn(), nil })
	default:
		return Literal(x)
	}
}

// Kind returns the slot kind.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Step returns the sequence step, or zero for unsequenced slots.
func (v Value) Step() int64 {
	return v.step
}

// resolve produces the slot's value. c is only used by sequenced slots.
func (v Value) resolve(c *Counter) (any, error) {
	switch v.kind {
	case ValueGenerator:
		return v.gen()
	case ValueSequenced:
		n := c.Next(v.step)
		base := v.literal
		if v.gen != nil {
			b, err := v.gen()
			if err != nil {
				return nil, err
			}
			base = b
		}
		return combine(base, n), nil
	default:
		return deepCopy(v.literal), nil
	}
}

// formatDirective matches one printf directive, including the %% escape.
var formatDirective = regexp.MustCompile(`%[-+# 0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z%]`)

// counterFormat reports whether s is a format with exactly one directive and
// that directive accepts an integer.
func counterFormat(s string) bool {
	verb := ""
	for _, d := range formatDirective.FindAllString(s, -1) {
		if d == "%%" {
			continue
		}
		if verb != "" {
			return false
		}
		verb = d
	}
	if verb == "" {
		return false
	}
	switch verb[len(verb)-1] {
	case 'd', 'v', 'x', 'X':
		return true
	}
	return false
}

// combine merges a sequence value into base. Numbers are added keeping their
// type. A string with a single integer directive formats the counter; any
// other string has it appended.
func combine(base any, n int64) any {
	if base == nil {
		return n
	}

	rv := reflect.ValueOf(base)
	out := reflect.New(rv.Type()).Elem()

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(rv.Int() + n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.SetUint(rv.Uint() + uint64(n))
	case reflect.Float32, reflect.Float64:
		out.SetFloat(rv.Float() + float64(n))
	case reflect.String:
		s := rv.String()
		if counterFormat(s) {
			out.SetString(fmt.Sprintf(s, n))
		} else {
			out.SetString(s + strconv.FormatInt(n, 10))
		}
	default:
		return base
	}
	return out.Interface()
}

// AttrOption configures an attribute when it is set.
type AttrOption func(*attrConfig)

type attrConfig struct {
	step int64
}

// AutoIncrement enables sequencing. true means a step of 1, a positive number
// is floored to an integer step, anything else leaves the attribute
// unsequenced.
func AutoIncrement(v any) AttrOption {
	return func(c *attrConfig) {
		c.step = normalizeStep(v)
	}
}

func normalizeStep(v any) int64 {
	if v == nil {
		return 0
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i := rv.Int(); i > 0 {
			return i
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u > 0 && u <= math.MaxInt64 {
			return int64(u)
		}
	case reflect.Float32, reflect.Float64:
		f := math.Floor(rv.Float())
		if f >= 1 && f < math.MaxInt64 {
			return int64(f)
		}
	}
	return 0
}

// Table is an ordered attribute table. It is not safe for concurrent
// mutation; Factory serializes access to its table.
type Table struct {
	order []string
	specs map[string]Value
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		specs: make(map[string]Value),
	}
}

// Set stores value under name, replacing any previous slot but keeping the
// original position.
func (t *Table) Set(name string, value any, opts ...AttrOption) Value {
	var cfg attrConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	v := ValueOf(value)
	if cfg.step > 0 {
		v = Sequenced(v, cfg.step)
	}

	if _, exists := t.specs[name]; !exists {
		t.order = append(t.order, name)
	}
	t.specs[name] = v
	return v
}

// Get returns the slot stored under name.
func (t *Table) Get(name string) (Value, bool) {
	v, ok := t.specs[name]
	return v, ok
}

// Names returns attribute names in definition order.
func (t *Table) Names() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Len returns the number of attributes.
func (t *Table) Len() int {
	return len(t.order)
}

func (t *Table) clone() *Table {
	c := &Table{
		order: make([]string, len(t.order)),
		specs: make(map[string]Value, len(t.specs)),
	}
	copy(c.order, t.order)
	for name, v := range t.specs {
		c.specs[name] = v
	}
	return c
}

// Merge copies every slot of other that t does not define. Entries already in
// t win.
func (t *Table) Merge(other *Table) {
	if other == nil || other == t {
		return
	}
	for _, name := range other.order {
		if _, own := t.specs[name]; own {
			continue
		}
		t.order = append(t.order, name)
		t.specs[name] = other.specs[name]
	}
}

// Evaluate resolves every slot into a plain mapping. Overrides replace table
// slots entirely, so an overridden sequence is not advanced. A map override of
// a map literal is deep-merged into it instead, key by key. Override keys
// unknown to the table are passed through. Each generator runs exactly once.
func (t *Table) Evaluate(seq *Sequences, overrides Attrs) (Attrs, error) {
	out := make(Attrs, len(t.order)+len(overrides))

	for _, name := range t.order {
		v := t.specs[name]
		if ov, ok := overrides[name]; ok {
			v = overrideValue(v, ov)
		}
		val, err := resolveSlot(seq, name, v)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}

	for name, ov := range overrides {
		if _, known := t.specs[name]; known {
			continue
		}
		val, err := resolveSlot(seq, name, ValueOf(ov))
		if err != nil {
			return nil, err
		}
		out[name] = val
	}

	return out, nil
}

// overrideValue returns the slot used for an overridden attribute.
func overrideValue(v Value, override any) Value {
	if v.kind == ValueLiteral {
		base, ok := stringMap(v.literal)
		over, isMap := stringMap(override)
		if ok && isMap {
			return Literal(mergeMaps(base, over))
		}
	}
	return ValueOf(override)
}

// mergeMaps returns a deep copy of base with over merged in. Nested maps are
// merged recursively; every other value in over replaces the base value.
func mergeMaps(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = deepCopy(v)
	}
	for k, v := range over {
		if bm, ok := stringMap(out[k]); ok {
			if om, ok := stringMap(v); ok {
				out[k] = mergeMaps(bm, om)
				continue
			}
		}
		out[k] = deepCopy(v)
	}
	return out
}

func stringMap(x any) (map[string]any, bool) {
	switch m := x.(type) {
	case map[string]any:
		return m, m != nil
	case Attrs:
		return map[string]any(m), m != nil
	}
	return nil, false
}

func resolveSlot(seq *Sequences, name string, v Value) (any, error) {
	var c *Counter
	if v.kind == ValueSequenced {
		c = seq.Counter(name)
	}
	val, err := v.resolve(c)
	if err != nil {
		return nil, NewGeneratorError(name, err)
	}
	return val, nil
}

// deepCopy clones maps and slices so callers cannot mutate stored literals.
func deepCopy(v any) any {
	if v == nil {
		return nil
	}
	return copyValue(reflect.ValueOf(v)).Interface()
}

func copyValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		return copyValue(rv.Elem())
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyValue(rv.Index(i)))
		}
		return out
	default:
		return rv
	}
}
