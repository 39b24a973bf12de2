package loader

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/models"
)

// Func is the body of a registered function. Provider failures are returned
// as plain errors; Call decides how they surface.
type Func func(ctx context.Context, req *Request) (any, error)

// FuncSpec describes one registered function.
type FuncSpec struct {
	// Name is "<module>.<function>", e.g. "azurerm_compute_disk.get".
	Name string
	// Params lists the names bound to positional arguments, in order.
	Params []string
	// Required lists keyword arguments that must be present.
	Required []string
	// Family is the client family used when logging provider errors.
	Family string
	Doc    string
	Fn     Func
	// Descriptor, when set, builds the ARM descriptor a create call with
	// the same arguments would send, without reaching Azure. State
	// functions diff it against the live resource.
	Descriptor func(args models.BasicConfig) (map[string]any, error)
}

func (s *FuncSpec) Module() string {
	module, _, _ := strings.Cut(s.Name, ".")
	return module
}

// Request is the invocation handed to a Func.
type Request struct {
	Function string
	Args     models.BasicConfig
	Test     bool
	Registry *Registry
}

type CallOptions struct {
	// Test requests a dry run from state functions.
	Test bool
}

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*FuncSpec
}

func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]*FuncSpec),
	}
}

// Register adds a function. Registering the same name twice keeps the first.
func (r *Registry) Register(spec FuncSpec) {
	name := strings.ToLower(spec.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		logrus.WithField("function", name).Warn("Function already registered")
		return
	}
	spec.Name = name
	r.funcs[name] = &spec
}

// Set replaces a function in the registry (useful for testing)
func (r *Registry) Set(spec FuncSpec) {
	name := strings.ToLower(spec.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	spec.Name = name
	r.funcs[name] = &spec
}

func (r *Registry) Get(name string) (*FuncSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.funcs[strings.ToLower(name)]
	return spec, ok
}

// Names returns every registered function name in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs a function and returns whatever it returned, errors included.
// State functions use it to reach execution functions so they can tell a
// missing resource apart from a failed lookup.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, opts CallOptions) (any, error) {
	spec, ok := r.Get(name)
	if !ok {
		return nil, &InvocationError{Function: name, Err: ErrUnknownFunction}
	}

	if missing := missingArgs(spec, args); len(missing) > 0 {
		return nil, &InvocationError{
			Function: spec.Name,
			Err:      fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(missing, ", ")),
		}
	}

	req := &Request{
		Function: spec.Name,
		Args:     models.BasicConfig(args).Clone(),
		Test:     opts.Test,
		Registry: r,
	}

	logrus.WithFields(logrus.Fields{
		"function": spec.Name,
		"test":     opts.Test,
	}).Debug("Invoking function")

	return spec.Fn(ctx, req)
}

// Call runs a function under the error contract of the loader: invocation
// and credential errors are returned, every other failure is logged and
// handed back as {"error": "<message>"}.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any, opts CallOptions) (any, error) {
	result, err := r.Invoke(ctx, name, args, opts)
	if err == nil {
		return result, nil
	}

	if IsFatal(err) {
		return nil, err
	}

	family := ""
	if spec, ok := r.Get(name); ok {
		family = spec.Family
	}
	cfg := models.BasicConfig(args)
	level := cfg.GetStringWithDefault("azurerm_log_level", "error")

	return SoftFail(family, err, level), nil
}

func missingArgs(spec *FuncSpec, args map[string]any) []string {
	var missing []string
	for _, key := range spec.Required {
		if value, ok := args[key]; !ok || value == nil {
			missing = append(missing, key)
		}
	}
	return missing
}
