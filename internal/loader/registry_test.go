package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(FuncSpec{
		Name:     "test_module.echo",
		Params:   []string{"name"},
		Required: []string{"name"},
		Fn: func(ctx context.Context, req *Request) (any, error) {
			name, _ := req.Args.GetString("name")
			return map[string]any{"name": name, "test": req.Test}, nil
		},
	})
	r.Register(FuncSpec{
		Name:   "test_module.provider_failure",
		Family: "compute",
		Fn: func(ctx context.Context, req *Request) (any, error) {
			return nil, errors.New("quota exceeded")
		},
	})
	r.Register(FuncSpec{
		Name: "test_module.credential_failure",
		Fn: func(ctx context.Context, req *Request) (any, error) {
			return nil, &azure.CredentialError{Err: errors.New("bad secret")}
		},
	})
	r.Register(FuncSpec{
		Name: "test_module.missing_subscription",
		Fn: func(ctx context.Context, req *Request) (any, error) {
			return nil, azure.ErrSubscriptionRequired
		},
	})
	return r
}

func TestRegistry_Call(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	t.Run("success passes result through", func(t *testing.T) {
		result, err := r.Call(ctx, "test_module.echo", map[string]any{"name": "vm1"}, CallOptions{Test: true})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "vm1", "test": true}, result)
	})

	t.Run("names are case insensitive", func(t *testing.T) {
		_, ok := r.Get("TEST_MODULE.ECHO")
		assert.True(t, ok)
	})

	t.Run("provider failure is an error mapping", func(t *testing.T) {
		result, err := r.Call(ctx, "test_module.provider_failure", map[string]any{}, CallOptions{})
		require.NoError(t, err)
		msg, ok := IsErrorResult(result)
		assert.True(t, ok)
		assert.Equal(t, "quota exceeded", msg)
	})

	t.Run("credential failure is returned", func(t *testing.T) {
		result, err := r.Call(ctx, "test_module.credential_failure", map[string]any{}, CallOptions{})
		assert.Nil(t, result)
		assert.True(t, azure.IsCredentialError(err))
	})

	t.Run("missing subscription is returned", func(t *testing.T) {
		_, err := r.Call(ctx, "test_module.missing_subscription", map[string]any{}, CallOptions{})
		assert.ErrorIs(t, err, azure.ErrSubscriptionRequired)
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := r.Call(ctx, "test_module.nope", map[string]any{}, CallOptions{})
		var invocationErr *InvocationError
		require.True(t, errors.As(err, &invocationErr))
		assert.ErrorIs(t, err, ErrUnknownFunction)
	})

	t.Run("missing required argument", func(t *testing.T) {
		_, err := r.Call(ctx, "test_module.echo", map[string]any{}, CallOptions{})
		assert.ErrorIs(t, err, ErrMissingArgument)
		assert.Contains(t, err.Error(), "name")
	})
}

func TestRegistry_InvokeReturnsRawErrors(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Invoke(context.Background(), "test_module.provider_failure", map[string]any{}, CallOptions{})
	assert.EqualError(t, err, "quota exceeded")
}

func TestRegistry_RegisterKeepsFirst(t *testing.T) {
	r := newTestRegistry()
	r.Register(FuncSpec{
		Name: "test_module.echo",
		Fn: func(ctx context.Context, req *Request) (any, error) {
			return "replaced", nil
		},
	})
	result, err := r.Invoke(context.Background(), "test_module.echo", map[string]any{"name": "x"}, CallOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, "replaced", result)

	r.Set(FuncSpec{
		Name: "test_module.echo",
		Fn: func(ctx context.Context, req *Request) (any, error) {
			return "replaced", nil
		},
	})
	result, err = r.Invoke(context.Background(), "test_module.echo", map[string]any{}, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "replaced", result)

	assert.Contains(t, r.Names(), "test_module.echo")
}

func TestBindPositional(t *testing.T) {
	spec := &FuncSpec{Name: "m.f", Params: []string{"name", "resource_group"}}

	args, err := BindPositional(spec, []any{"vm1", "rg1"}, map[string]any{"location": "westus"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "vm1", "resource_group": "rg1", "location": "westus"}, args)

	_, err = BindPositional(spec, []any{"a", "b", "c"}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecode(t *testing.T) {
	type params struct {
		Name     string        `mapstructure:"name" validate:"required"`
		Count    int           `mapstructure:"count"`
		Enabled  bool          `mapstructure:"enabled"`
		Interval time.Duration `mapstructure:"interval"`
		Zones    []string      `mapstructure:"zones"`
	}

	t.Run("weak typing", func(t *testing.T) {
		var p params
		err := Decode("m.f", map[string]any{
			"name":     "vm1",
			"count":    "3",
			"enabled":  "true",
			"interval": "5s",
			"zones":    "1,2",
		}, &p)
		require.NoError(t, err)
		assert.Equal(t, params{Name: "vm1", Count: 3, Enabled: true, Interval: 5 * time.Second, Zones: []string{"1", "2"}}, p)
	})

	t.Run("validation failure", func(t *testing.T) {
		var p params
		err := Decode("m.f", map[string]any{"count": 1}, &p)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.True(t, IsFatal(err))
	})
}
