package commands

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"voxcmd/pkg/voxtypes"
)

var (
	contextType  = reflect.TypeOf((*context.Context)(nil)).Elem()
	responseType = reflect.TypeOf(voxtypes.Response{})
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	objectType   = reflect.TypeOf((*voxtypes.Object)(nil))
)

// boundField maps one tagged struct field to a parameter name.
type boundField struct {
	name  string
	index int
	typ   reflect.Type
}

// handlerRunner adapts a typed handler function to voxtypes.Runner.
type handlerRunner struct {
	fn     reflect.Value
	arg    reflect.Type
	ptr    bool
	fields []boundField
}

// Bind turns a handler into a Runner. The handler has the form
//
//	func(ctx context.Context, args T) (voxtypes.Response, error)
//
// where T is a struct, or a pointer to one, whose fields carry `param:"name"`
// tags. The tag names are the parameters the runner accepts. A handler
// without the args argument accepts no parameters.
//
// A field of type *voxtypes.Object receives the object itself. Other fields
// receive the object's value, converted where Go allows it; string fields fall
// back to the matched substring and pointer fields stay nil when the
// parameter is absent.
func Bind(handler any) (voxtypes.Runner, error) {
	if err := validateHandler(handler); err != nil {
		return nil, voxtypes.NewConfigError("handler", err)
	}

	r := &handlerRunner{fn: reflect.ValueOf(handler)}
	handlerType := r.fn.Type()
	if handlerType.NumIn() == 1 {
		return r, nil
	}

	arg := handlerType.In(1)
	if arg.Kind() == reflect.Pointer {
		r.ptr = true
		arg = arg.Elem()
	}
	r.arg = arg

	seen := make(map[string]bool)
	for i := 0; i < arg.NumField(); i++ {
		field := arg.Field(i)
		name, ok := field.Tag.Lookup("param")
		if !ok || name == "-" {
			continue
		}
		name = strings.TrimSpace(strings.Split(name, ",")[0])
		if name == "" {
			name = field.Name
		}
		if !field.IsExported() {
			return nil, voxtypes.ConfigErrorf("handler", "field %s with param tag %q must be exported", field.Name, name)
		}
		if seen[name] {
			return nil, voxtypes.ConfigErrorf("handler", "param %q bound twice", name)
		}
		seen[name] = true
		r.fields = append(r.fields, boundField{name: name, index: i, typ: field.Type})
	}
	return r, nil
}

// MustBind is like Bind but panics on an invalid handler.
func MustBind(handler any) voxtypes.Runner {
	r, err := Bind(handler)
	if err != nil {
		panic(err)
	}
	return r
}

// validateHandler checks that the handler function signature is usable.
func validateHandler(handler any) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	handlerType := reflect.TypeOf(handler)
	if handlerType.Kind() != reflect.Func {
		return fmt.Errorf("handler must be a function, got %T", handler)
	}

	if handlerType.NumOut() != 2 || handlerType.Out(0) != responseType || handlerType.Out(1) != errorType {
		return fmt.Errorf("handler must return (voxtypes.Response, error)")
	}

	switch handlerType.NumIn() {
	case 1:
	case 2:
		arg := handlerType.In(1)
		if arg.Kind() == reflect.Pointer {
			arg = arg.Elem()
		}
		if arg.Kind() != reflect.Struct {
			return fmt.Errorf("handler args must be a struct, got %v", handlerType.In(1))
		}
	default:
		return fmt.Errorf("handler expects %d params, want context and an args struct", handlerType.NumIn())
	}
	if handlerType.In(0) != contextType {
		return fmt.Errorf("handler first param must be context.Context, got %v", handlerType.In(0))
	}
	return nil
}

// Parameters implements voxtypes.Runner.
func (r *handlerRunner) Parameters() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.name
	}
	return names
}

// Run implements voxtypes.Runner.
func (r *handlerRunner) Run(ctx context.Context, params *voxtypes.Params) (voxtypes.Response, error) {
	in := []reflect.Value{reflect.ValueOf(ctx)}
	if r.arg != nil {
		args := reflect.New(r.arg)
		for _, f := range r.fields {
			obj, _ := params.Get(f.name)
			if err := assign(args.Elem().Field(f.index), obj); err != nil {
				return voxtypes.Response{}, fmt.Errorf("param %s: %w", f.name, err)
			}
		}
		if r.ptr {
			in = append(in, args)
		} else {
			in = append(in, args.Elem())
		}
	}

	out := r.fn.Call(in)
	resp := out[0].Interface().(voxtypes.Response)
	if err, _ := out[1].Interface().(error); err != nil {
		return resp, err
	}
	return resp, nil
}

// assign stores obj into dst. A nil object leaves dst at its zero value.
func assign(dst reflect.Value, obj *voxtypes.Object) error {
	if obj == nil {
		return nil
	}
	if dst.Type() == objectType {
		dst.Set(reflect.ValueOf(obj))
		return nil
	}

	target := dst.Type()
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	v, err := convert(obj, target)
	if err != nil {
		return err
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(target)
		p.Elem().Set(v)
		dst.Set(p)
		return nil
	}
	dst.Set(v)
	return nil
}

func convert(obj *voxtypes.Object, target reflect.Type) (reflect.Value, error) {
	if obj.Value != nil {
		v := reflect.ValueOf(obj.Value)
		switch {
		case v.Type().AssignableTo(target):
			return v, nil
		case v.Type().ConvertibleTo(target) && v.Kind() != reflect.String && target.Kind() != reflect.String:
			return v.Convert(target), nil
		}
	}
	if target.Kind() == reflect.String {
		return reflect.ValueOf(obj.Substring).Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %v", obj.Value, target)
}
