// Package grammarfile reads YAML grammar files that declare parameter types
// and commands, and registers them with a type registry and a command manager.
//
// A grammar file looks like:
//
//	version: "1.1.0"
//	types:
//	  - name: Room
//	    pattern: "(kitchen|bedroom|living room)"
//	  - name: Colour
//	    pattern: "*"
//	    values: [red, green, blue]
//	commands:
//	  - name: lights
//	    pattern: "turn (on|off) the lights (in the $room:Room)?"
//	    response: "Switching the lights in {room}"
package grammarfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxcmd/internal/commands"
	"voxcmd/internal/grammar"
	"voxcmd/internal/paramtypes"
	"voxcmd/internal/version"
	"voxcmd/pkg/voxtypes"
)

// valuesFormat is the first format version that knows type allow-lists.
const valuesFormat = "1.1.0"

// File is a parsed grammar file.
type File struct {
	Version  string        `yaml:"version"`
	Types    []TypeSpec    `yaml:"types"`
	Commands []CommandSpec `yaml:"commands"`
}

// TypeSpec declares a parameter type.
type TypeSpec struct {
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Greedy  bool     `yaml:"greedy"`
	Fields  []string `yaml:"fields"`
	// Values restricts the type to these words, compared without case. The
	// parameter value is the listed spelling.
	Values []string `yaml:"values"`
}

// CommandSpec declares a command answered with a response template.
type CommandSpec struct {
	Name     string   `yaml:"name"`
	Pattern  string   `yaml:"pattern"`
	Params   []string `yaml:"params"`
	Response string   `yaml:"response"`
}

// Parse decodes a grammar file and checks its format version.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, voxtypes.NewConfigError("grammar file", err)
	}
	if err := version.CheckGrammarFormat(f.Version); err != nil {
		return nil, voxtypes.NewConfigError("grammar file", err)
	}
	if err := f.checkFeatures(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the grammar file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grammar file %s: %w", path, err)
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) checkFeatures() error {
	v := f.Version
	if v == "" {
		v = "1.0.0"
	}
	cmp, err := version.CompareVersions(v, valuesFormat)
	if err != nil {
		return voxtypes.NewConfigError("grammar file", err)
	}
	if cmp >= 0 {
		return nil
	}
	for _, t := range f.Types {
		if len(t.Values) > 0 {
			return voxtypes.ConfigErrorf("type "+t.Name, "values need grammar format %s, file is %s", valuesFormat, v)
		}
	}
	return nil
}

// Apply registers the file's types with types and its commands with mgr, in
// file order. It stops at the first error.
func (f *File) Apply(types *paramtypes.Registry, mgr *commands.Manager) error {
	for _, spec := range f.Types {
		t, err := spec.build()
		if err != nil {
			return err
		}
		if err := types.Register(t); err != nil {
			return err
		}
	}

	for _, spec := range f.Commands {
		params := spec.Params
		if params == nil {
			// Accept exactly what the grammar declares.
			p, err := grammar.NewPattern(spec.Pattern)
			if err != nil {
				return err
			}
			params = p.ParamNames()
		}

		var opts []commands.Option
		if spec.Name != "" {
			opts = append(opts, commands.WithName(spec.Name))
		}
		runner := commands.NewTemplateRunner(params, spec.Response)
		if _, err := mgr.Register(spec.Pattern, runner, opts...); err != nil {
			return err
		}
	}
	return nil
}

func (s TypeSpec) build() (*paramtypes.Type, error) {
	var opts []paramtypes.Option
	if s.Greedy {
		opts = append(opts, paramtypes.Greedy())
	}
	if s.Fields != nil {
		opts = append(opts, paramtypes.WithFields(s.Fields...))
	}
	if len(s.Values) > 0 {
		opts = append(opts, paramtypes.WithParser(allowList(s.Name, s.Values)))
	}
	return paramtypes.New(s.Name, s.Pattern, opts...)
}

// allowList accepts only the listed values.
func allowList(typeName string, values []string) paramtypes.ParseFunc {
	canonical := make(map[string]string, len(values))
	for _, v := range values {
		canonical[strings.ToLower(strings.Join(strings.Fields(v), " "))] = v
	}
	return func(_ context.Context, obj *voxtypes.Object, substring string) (string, error) {
		key := strings.ToLower(strings.Join(strings.Fields(substring), " "))
		v, ok := canonical[key]
		if !ok {
			return "", voxtypes.NewParseError(typeName, substring, "not an allowed value")
		}
		obj.Value = v
		return substring, nil
	}
}
