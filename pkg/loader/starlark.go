package loader

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/factory/pkg/factory"
)

// execStarlark runs a Starlark definition file with a predeclared define().
func (l *Loader) execStarlark(ctx context.Context, u *unit, src []byte) error {
	evalCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: u.path,
		Print: func(_ *starlark.Thread, msg string) {
			l.logger.Debug().Str("file", u.path).Msg(msg)
		},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"define": starlark.NewBuiltin("define", u.starlarkDefine),
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := starlark.ExecFile(thread, u.path, src, predeclared)
		errCh <- err
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel(evalCtx.Err().Error())
		<-errCh
		return fmt.Errorf("starlark execution cancelled: %w", evalCtx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starlark execution failed: %w", err)
		}
		return nil
	}
}

// starlarkDefine implements define(name, model=None).
func (u *unit) starlarkDefine(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name  string
		model starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "model?", &model); err != nil {
		return nil, err
	}

	var f *factory.Factory
	switch m := model.(type) {
	case starlark.NoneType:
		f = u.define(name)
	case starlark.String:
		f = u.define(name, string(m))
	default:
		return nil, fmt.Errorf("%s: model must be a string or None, got %s", b.Name(), model.Type())
	}

	return &factoryValue{factory: f, unit: u}, nil
}

// factoryValue exposes a factory to Starlark with attr() and parent()
// methods that return the factory for chaining.
type factoryValue struct {
	factory *factory.Factory
	unit    *unit
}

var _ starlark.HasAttrs = (*factoryValue)(nil)

func (v *factoryValue) String() string        { return fmt.Sprintf("<factory %s>", v.factory.Name()) }
func (v *factoryValue) Type() string          { return "factory" }
func (v *factoryValue) Freeze()               {}
func (v *factoryValue) Truth() starlark.Bool  { return starlark.True }
func (v *factoryValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: factory") }

func (v *factoryValue) AttrNames() []string {
	return []string{"attr", "model", "name", "parent"}
}

func (v *factoryValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.factory.Name()), nil
	case "model":
		return starlark.String(v.factory.ModelName()), nil
	case "attr":
		return starlark.NewBuiltin("attr", v.attr).BindReceiver(v), nil
	case "parent":
		return starlark.NewBuiltin("parent", v.parent).BindReceiver(v), nil
	default:
		return nil, nil
	}
}

// attr implements attr(name, value, auto_increment=None).
func (v *factoryValue) attr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name    string
		value   starlark.Value
		autoInc starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value, "auto_increment?", &autoInc); err != nil {
		return nil, err
	}

	slot, err := slotFromStarlark(value)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", b.Name(), name, err)
	}

	var opts []factory.AttrOption
	if autoInc != starlark.None {
		step, err := fromStarlarkValue(autoInc)
		if err != nil {
			return nil, fmt.Errorf("%s %q: auto_increment: %w", b.Name(), name, err)
		}
		opts = append(opts, factory.AutoIncrement(step))
	}

	v.factory.Attr(name, slot, opts...)
	return v, nil
}

// parent implements parent(name). The link is applied after loading.
func (v *factoryValue) parent(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	v.unit.addParent(v.factory, name)
	return v, nil
}

// slotFromStarlark turns callables into generators and everything else into
// Go literals.
func slotFromStarlark(value starlark.Value) (any, error) {
	fn, ok := value.(starlark.Callable)
	if !ok {
		return fromStarlarkValue(value)
	}

	return factory.GeneratorE(func() (any, error) {
		// Each call gets its own thread; the callable is frozen after exec.
		thread := &starlark.Thread{Name: "generator:" + fn.Name()}
		out, err := starlark.Call(thread, fn, nil, nil)
		if err != nil {
			return nil, err
		}
		return fromStarlarkValue(out)
	}), nil
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return fromStarlarkIterable(val, val.Len())
	case starlark.Tuple:
		return fromStarlarkIterable(val, val.Len())
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromStarlarkIterable(it starlark.Iterable, n int) ([]any, error) {
	list := make([]any, 0, n)
	iter := it.Iterate()
	defer iter.Done()

	var x starlark.Value
	for iter.Next(&x) {
		item, err := fromStarlarkValue(x)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, nil
}
