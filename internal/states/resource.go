package states

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

// ErrNoConnection is the comment of a state called without connection_auth.
const ErrNoConnection = "Connection information must be specified via connection_auth dictionary!"

// resource reconciles one ARM resource type through the get,
// create_or_update and delete functions of its execution module.
type resource struct {
	// module is the execution module, e.g. "azurerm_network".
	module string
	// kind prefixes the function names inside module, e.g.
	// "virtual_network_". Modules serving a single type leave it empty.
	kind string
	// noun is used in comments, e.g. "Virtual network".
	noun string
	// stateModule and stateKind override module and kind in the names of
	// the state functions.
	stateModule string
	stateKind   string
}

func (r *resource) function(name string) string {
	return r.module + "." + r.kind + name
}

func (r *resource) state(name string) string {
	module, kind := r.module, r.kind
	if len(r.stateModule) > 0 {
		module, kind = r.stateModule, r.stateKind
	}
	return module + "." + kind + name
}

// Env is what state functions use to reach the execution functions.
type Env struct {
	Exec *loader.Registry
}

// connection splits a state request into the name, the arguments for the
// execution functions (connection_auth merged in) and a failed result when
// connection_auth is missing.
func connection(req *loader.Request) (string, models.BasicConfig, *models.StateResult) {
	name, _ := req.Args.GetString("name")
	auth, ok := req.Args.GetMap("connection_auth")
	if !ok {
		return name, nil, models.NewStateResult(name).Fail(ErrNoConnection)
	}
	args := req.Args.Without("connection_auth")
	args.Update(auth)
	return name, args, nil
}

// lookup fetches the live resource. A missing resource is (nil, nil).
func (e *Env) lookup(ctx context.Context, function string, args models.BasicConfig) (map[string]any, error) {
	result, err := e.Exec.Invoke(ctx, function, args, loader.CallOptions{})
	if err != nil {
		if azure.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if msg, ok := loader.IsErrorResult(result); ok {
		return nil, fmt.Errorf("%s", msg)
	}
	desc, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", function, result)
	}
	return desc, nil
}

// mutate runs a mutating execution function.
func (e *Env) mutate(ctx context.Context, function string, args models.BasicConfig) (any, error) {
	result, err := e.Exec.Invoke(ctx, function, args, loader.CallOptions{})
	if err != nil {
		return nil, err
	}
	if msg, ok := loader.IsErrorResult(result); ok {
		return nil, fmt.Errorf("%s", msg)
	}
	return result, nil
}

// failure turns a lookup or mutation error into a failed result, except for
// errors that have to reach the caller.
func failure(res *models.StateResult, err error, format string, a ...any) (any, error) {
	if loader.IsFatal(err) {
		return nil, err
	}
	logrus.WithError(err).WithField("state", res.Name).Debug("State failed")
	res.Changes = map[string]any{}
	return res.Fail(fmt.Sprintf(format, a...) + fmt.Sprintf(" (%s)", azure.ErrorMessage(err))).AsMap(), nil
}

func (e *Env) desired(function string, args models.BasicConfig) (map[string]any, error) {
	spec, ok := e.Exec.Get(function)
	if !ok {
		return nil, &loader.InvocationError{Function: function, Err: loader.ErrUnknownFunction}
	}
	if spec.Descriptor == nil {
		return map[string]any{}, nil
	}
	return spec.Descriptor(args)
}

func (e *Env) present(r *resource) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		name, args, res := connection(req)
		if res != nil {
			return res.AsMap(), nil
		}
		res = models.NewStateResult(name)
		noun := r.noun + " " + name

		desired, err := e.desired(r.function("create_or_update"), args)
		if err != nil {
			return failure(res, err, "Unable to build the desired state of %s!", noun)
		}
		actual, err := e.lookup(ctx, r.function("get"), args)
		if err != nil {
			return failure(res, err, "Unable to look up %s!", noun)
		}

		action := "created"
		if actual != nil {
			res.Changes = Diff(actual, desired)
			if len(res.Changes) == 0 {
				return res.Succeed(fmt.Sprintf("%s is already present.", noun)).AsMap(), nil
			}
			action = "updated"
		} else {
			res.Changes = change(map[string]any{}, desired)
		}

		if req.Test {
			return res.Pending(fmt.Sprintf("%s would be %s.", noun, action)).AsMap(), nil
		}

		created, err := e.mutate(ctx, r.function("create_or_update"), args)
		if err != nil {
			return failure(res, err, "Failed to %s %s!", createVerb(action), noun)
		}
		if action == "created" {
			res.Changes = change(map[string]any{}, created)
		}
		return res.Succeed(fmt.Sprintf("%s has been %s.", noun, action)).AsMap(), nil
	}
}

func (e *Env) absent(r *resource) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		name, args, res := connection(req)
		if res != nil {
			return res.AsMap(), nil
		}
		res = models.NewStateResult(name)
		noun := r.noun + " " + name

		actual, err := e.lookup(ctx, r.function("get"), args)
		if err != nil {
			return failure(res, err, "Unable to look up %s!", noun)
		}
		if actual == nil {
			return res.Succeed(fmt.Sprintf("%s was not found.", noun)).AsMap(), nil
		}

		res.Changes = change(actual, map[string]any{})
		if req.Test {
			return res.Pending(fmt.Sprintf("%s would be deleted.", noun)).AsMap(), nil
		}
		if _, err := e.mutate(ctx, r.function("delete"), args); err != nil {
			return failure(res, err, "Failed to delete %s!", noun)
		}
		return res.Succeed(fmt.Sprintf("%s has been deleted.", noun)).AsMap(), nil
	}
}

func createVerb(action string) string {
	if action == "created" {
		return "create"
	}
	return "update"
}
