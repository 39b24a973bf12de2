package modules

import (
	"context"
	"slices"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

// crud generates the get, list, create_or_update and delete functions of a
// resource type served by an azure.Operations adapter.
type crud[T any] struct {
	// prefix and plural make up function names: <prefix>get,
	// <plural>list, <plural>list_all.
	prefix string
	plural string
	noun   string

	// parentArg names the argument holding the enclosing resource.
	parentArg string
	// typeArg names the argument holding the DNS record type.
	typeArg string
	// createParams are extra positional parameters of create_or_update.
	createParams []string
	// located resources default their location to the resource group's.
	located bool
	listAll bool
	noList  bool

	schema schema
	// prepare may rewrite the arguments before the descriptor is built, e.g.
	// to turn names into resource IDs.
	prepare func(ctx context.Context, clients azure.Clients, args models.BasicConfig, ref azure.Ref) error
	// finish may adjust the descriptor before it becomes a model.
	finish func(desc map[string]any, args models.BasicConfig)
	api    func(clients azure.Clients) (azure.Operations[T], error)
}

func (c *crud[T]) identity() []string {
	params := []string{"name"}
	if len(c.parentArg) > 0 {
		params = append(params, c.parentArg)
	}
	params = append(params, "resource_group")
	if len(c.typeArg) > 0 {
		params = append(params, c.typeArg)
	}
	return params
}

func (c *crud[T]) ref(args models.BasicConfig) azure.Ref {
	ref := azure.Ref{}
	ref.Name, _ = args.GetString("name")
	ref.ResourceGroup, _ = args.GetString("resource_group")
	if len(c.parentArg) > 0 {
		ref.Parent, _ = args.GetString(c.parentArg)
	}
	if len(c.typeArg) > 0 {
		ref.Type, _ = args.GetString(c.typeArg)
	}
	return ref
}

func (c *crud[T]) functions(e *Env) []function {
	identity := c.identity()
	fns := []function{
		{name: c.prefix + "get", params: identity, required: identity,
			doc: "Get a " + c.noun + ".", fn: c.get(e)},
		{name: c.prefix + "create_or_update", params: append(slices.Clone(identity), c.createParams...),
			required: append(slices.Clone(identity), c.createParams...),
			doc: "Create or update a " + c.noun + ".", fn: c.createOrUpdate(e), descriptor: c.descriptor},
		{name: c.prefix + "delete", params: identity, required: identity,
			doc: "Delete a " + c.noun + ".", fn: c.delete(e)},
	}

	if !c.noList {
		var listParams, listRequired []string
		if len(c.parentArg) > 0 {
			listParams = []string{c.parentArg, "resource_group"}
			listRequired = listParams
		} else {
			listParams = []string{"resource_group"}
			if c.listAll {
				listRequired = listParams
			}
		}
		fns = append(fns, function{name: c.plural + "list", params: listParams, required: listRequired,
			doc: "List " + c.noun + "s.", fn: c.list(e)})
	}
	if c.listAll {
		fns = append(fns, function{name: c.plural + "list_all",
			doc: "List " + c.noun + "s in the subscription.", fn: c.list(e)})
	}
	return fns
}

func (c *crud[T]) operations(ctx context.Context, e *Env, req *loader.Request) (azure.Clients, azure.Operations[T], error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	ops, err := c.api(clients)
	if err != nil {
		return nil, nil, err
	}
	return clients, ops, nil
}

func (c *crud[T]) get(e *Env) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		_, ops, err := c.operations(ctx, e, req)
		if err != nil {
			return nil, err
		}
		item, err := ops.Get(ctx, c.ref(req.Args))
		if err != nil {
			return nil, err
		}
		return describe(item)
	}
}

func (c *crud[T]) list(e *Env) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		_, ops, err := c.operations(ctx, e, req)
		if err != nil {
			return nil, err
		}
		items, err := ops.List(ctx, c.ref(req.Args))
		if err != nil {
			return nil, err
		}
		return keyed(items)
	}
}

// descriptor builds the body a create_or_update call would send, leaving out
// what only Azure can fill in.
func (c *crud[T]) descriptor(args models.BasicConfig) (map[string]any, error) {
	desc, err := c.schema.descriptor(args)
	if err != nil {
		return nil, modelError(err)
	}
	if c.finish != nil {
		c.finish(desc, args)
	}
	return desc, nil
}

// model builds the SDK model a create_or_update call would send.
func (c *crud[T]) model(ctx context.Context, clients azure.Clients, args models.BasicConfig) (T, error) {
	var zero T
	ref := c.ref(args)
	if c.located {
		if err := ensureLocation(ctx, clients, args, ref.ResourceGroup); err != nil {
			return zero, err
		}
	}
	if c.prepare != nil {
		if err := c.prepare(ctx, clients, args, ref); err != nil {
			return zero, err
		}
	}

	desc, err := c.schema.descriptor(args)
	if err != nil {
		return zero, modelError(err)
	}
	if c.finish != nil {
		c.finish(desc, args)
	}
	return build[T](desc)
}

func (c *crud[T]) createOrUpdate(e *Env) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		clients, ops, err := c.operations(ctx, e, req)
		if err != nil {
			return nil, err
		}
		model, err := c.model(ctx, clients, req.Args)
		if err != nil {
			return nil, err
		}
		item, err := ops.CreateOrUpdate(ctx, c.ref(req.Args), model)
		if err != nil {
			return nil, err
		}
		return describe(item)
	}
}

func (c *crud[T]) delete(e *Env) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		_, ops, err := c.operations(ctx, e, req)
		if err != nil {
			return nil, err
		}
		if err := ops.Delete(ctx, c.ref(req.Args)); err != nil {
			return nil, err
		}
		return true, nil
	}
}
