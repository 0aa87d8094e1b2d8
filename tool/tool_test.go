package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSpec(t *testing.T) Spec {
	t.Helper()
	s, err := NewSpec("calculate_sum", "Calculate the sum of two numbers", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}, func(_ context.Context, args map[string]any) (string, error) {
		return fmt.Sprint(args["a"].(float64) + args["b"].(float64)), nil
	})
	require.NoError(t, err)
	return s
}

// -------------------- Spec Tests --------------------

func TestNewSpec_Validation(t *testing.T) {
	_, err := NewSpec("bad name!", "", nil, func(context.Context, map[string]any) (string, error) { return "", nil })
	assert.Error(t, err)

	_, err = NewSpec("ok", "", nil, nil)
	assert.Error(t, err)

	assert.Panics(t, func() { MustSpec(NewSpec("", "", nil, nil)) })
}

func TestSpec_DefinitionDefaultsSchema(t *testing.T) {
	s := MustSpec(NewSpec("noop", "does nothing", nil, func(context.Context, map[string]any) (string, error) { return "", nil }))
	def := s.Definition()
	assert.Equal(t, "noop", def.Name)
	assert.Equal(t, "object", def.Parameters["type"])
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"description=City name"`
	Unit string `json:"unit,omitempty" jsonschema:"enum=c,enum=f"`
}

func TestNewTyped(t *testing.T) {
	s, err := NewTyped("get_weather", "Current weather", func(_ context.Context, in weatherArgs) (string, error) {
		return in.City + "/" + in.Unit, nil
	})
	require.NoError(t, err)

	r := NewRegistry(nil)
	require.NoError(t, r.Register(s))

	out, err := r.Execute(context.Background(), model.ToolCall{Name: "get_weather", Arguments: `{"city":"Berlin","unit":"c"}`})
	require.NoError(t, err)
	assert.Equal(t, "Berlin/c", out)

	_, err = r.Execute(context.Background(), model.ToolCall{Name: "get_weather", Arguments: `{"unit":"c"}`})
	assert.ErrorIs(t, err, core.ErrArgumentValidation)
}

// -------------------- Registry Tests --------------------

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(sumSpec(t)))

	err := r.Register(sumSpec(t))
	assert.ErrorIs(t, err, core.ErrDuplicateTool)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	r := NewRegistry(nil)
	noop := func(context.Context, map[string]any) (string, error) { return "", nil }
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(MustSpec(NewSpec(n, n, nil, noop))))
	}

	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
	assert.Len(t, r.Definitions("mid", "unknown"), 1)
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(sumSpec(t)))

	out, err := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "calculate_sum", Arguments: `{"a":2,"b":3}`})
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestRegistry_ExecuteErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(nil)
	require.NoError(t, r.Register(sumSpec(t)))
	require.NoError(t, r.Register(MustSpec(NewSpec("fails", "", nil, func(context.Context, map[string]any) (string, error) {
		return "", boom
	}))))
	require.NoError(t, r.Register(MustSpec(NewSpec("panics", "", nil, func(context.Context, map[string]any) (string, error) {
		panic("kaboom")
	}))))

	tests := []struct {
		name string
		call model.ToolCall
		want *core.Error
	}{
		{"unknown tool", model.ToolCall{Name: "missing"}, core.ErrToolNotFound},
		{"malformed json", model.ToolCall{Name: "calculate_sum", Arguments: `{`}, core.ErrArgumentValidation},
		{"missing field", model.ToolCall{Name: "calculate_sum", Arguments: `{"a":1}`}, core.ErrArgumentValidation},
		{"wrong type", model.ToolCall{Name: "calculate_sum", Arguments: `{"a":"x","b":1}`}, core.ErrArgumentValidation},
		{"handler error", model.ToolCall{Name: "fails"}, core.ErrToolExecution},
		{"handler panic", model.ToolCall{Name: "panics"}, core.ErrToolExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), tt.call)
			assert.ErrorIs(t, err, tt.want)

			var te *ToolError
			assert.ErrorAs(t, err, &te)
		})
	}

	_, err := r.Execute(context.Background(), model.ToolCall{Name: "fails"})
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_ExecuteCancelled(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(MustSpec(NewSpec("slow", "", nil, func(ctx context.Context, _ map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Execute(ctx, model.ToolCall{Name: "slow"})
	assert.ErrorIs(t, err, core.ErrCancelled)
}

func TestRegistry_ConcurrentExecute(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(sumSpec(t)))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Execute(context.Background(), model.ToolCall{Name: "calculate_sum", Arguments: fmt.Sprintf(`{"a":%d,"b":1}`, i)})
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i+1), out)
		}(i)
	}
	wg.Wait()
}
