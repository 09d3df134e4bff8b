package paramtypes

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxcmd/pkg/voxtypes"
)

func TestRegistry_NewRegistry(t *testing.T) {
	registry := NewRegistry()

	assert.NotNil(t, registry)
	assert.NotEmpty(t, registry.ID())
	assert.Empty(t, registry.Names())
	assert.NotEqual(t, registry.ID(), NewRegistry().ID())
}

func TestRegistry_Register(t *testing.T) {
	word := MustNew("Word", "*")

	tests := []struct {
		name        string
		setup       func(r *Registry)
		typ         *Type
		expectError bool
		errContains string
	}{
		{
			name: "register new type",
			typ:  word,
		},
		{
			name:  "same type twice is a no-op",
			setup: func(r *Registry) { require.NoError(t, r.Register(word)) },
			typ:   word,
		},
		{
			name:        "different type with the same name",
			setup:       func(r *Registry) { require.NoError(t, r.Register(word)) },
			typ:         MustNew("Word", "**"),
			expectError: true,
			errContains: "already registered",
		},
		{
			name:        "grammar parameter not declared as a field",
			typ:         MustNew("FullName", "$first:Word $second:Word", WithFields("first")),
			expectError: true,
			errContains: `"second"`,
		},
		{
			name: "fields default to grammar parameters",
			typ:  MustNew("FullName", "$first:Word $second:Word"),
		},
		{
			name:        "frozen registry",
			setup:       func(r *Registry) { r.Freeze() },
			typ:         word,
			expectError: true,
			errContains: "frozen",
		},
		{
			name:        "nil type",
			typ:         nil,
			expectError: true,
			errContains: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if tt.setup != nil {
				tt.setup(r)
			}

			err := r.Register(tt.typ)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				var cfgErr *voxtypes.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)

			got, ok := r.Get(tt.typ.Name())
			assert.True(t, ok)
			assert.Same(t, tt.typ, got)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewDefaultRegistry()

	typ, err := r.Resolve(StringType)
	require.NoError(t, err)
	assert.Equal(t, StringType, typ.Name())
	assert.True(t, typ.Greedy())

	_, err = r.Resolve("Nope")
	assert.ErrorContains(t, err, "unknown parameter type: Nope")

	assert.Equal(t, []string{NumberType, StringType, WordType}, r.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(MustNew(fmt.Sprintf("T%d", i), "*"))
			_, _ = r.Resolve("T0")
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Names(), 20)
}

func TestNew(t *testing.T) {
	_, err := New("", "*")
	assert.Error(t, err)

	_, err = New("Broken", "(unclosed")
	assert.ErrorContains(t, err, "type Broken")

	typ, err := New("Pair", "$a:Word and $b:Word", Greedy())
	require.NoError(t, err)
	assert.True(t, typ.Greedy())
	assert.Equal(t, []string{"a", "b"}, typ.Fields())
}

func TestType_DidParse(t *testing.T) {
	ctx := context.Background()

	t.Run("default keeps substring as value", func(t *testing.T) {
		obj := &voxtypes.Object{}
		sub, err := MustNew("Word", "*").DidParse(ctx, obj, "kitchen")
		require.NoError(t, err)
		assert.Equal(t, "kitchen", sub)
		assert.Equal(t, "kitchen", obj.Value)
	})

	t.Run("custom parser", func(t *testing.T) {
		typ := MustNew("Upper", "*", WithParser(func(_ context.Context, obj *voxtypes.Object, s string) (string, error) {
			obj.Value = len(s)
			return s[:1], nil
		}))
		obj := &voxtypes.Object{}
		sub, err := typ.DidParse(ctx, obj, "abc")
		require.NoError(t, err)
		assert.Equal(t, "a", sub)
		assert.Equal(t, 3, obj.Value)
	})
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "42", want: 42},
		{input: "seven", want: 7},
		{input: "Twenty", want: 20},
		{input: "niner", want: 9},
		{input: "lamp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			obj := &voxtypes.Object{}
			sub, err := parseNumber(context.Background(), obj, tt.input)
			if tt.wantErr {
				assert.True(t, voxtypes.IsParseError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, sub)
			assert.Equal(t, tt.want, obj.Value)
		})
	}
}
