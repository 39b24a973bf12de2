// Package modules registers the execution functions: one function per
// remote operation of each supported Azure resource type.
package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

// ErrNoLocation is returned when a create call has no location and the
// resource group cannot supply one.
var ErrNoLocation = errors.New("Unable to determine location from resource group specified.")

// Env carries what execution functions need to reach Azure.
type Env struct {
	Connector azure.Connector
}

// Register adds every execution function to reg.
func Register(reg *loader.Registry, connector azure.Connector) {
	env := &Env{Connector: connector}

	env.registerResource(reg)
	env.registerDeployments(reg)
	env.registerPolicy(reg)
	env.registerAvailabilitySets(reg)
	env.registerDisks(reg)
	env.registerVirtualMachines(reg)
	env.registerVirtualMachineExtensions(reg)
	env.registerVirtualMachineImages(reg)
	env.registerComputeImages(reg)
	env.registerNetwork(reg)
	env.registerVaults(reg)
	env.registerSecrets(reg)
	env.registerKeys(reg)
	env.registerDNS(reg)
	env.registerStorage(reg)
	env.registerAuthorization(reg)
}

type function struct {
	name     string
	params   []string
	required []string
	doc      string
	fn       loader.Func
	// descriptor is set on create functions.
	descriptor func(args models.BasicConfig) (map[string]any, error)
}

func register(reg *loader.Registry, module, family string, fns []function) {
	for _, f := range fns {
		reg.Register(loader.FuncSpec{
			Name:       module + "." + f.name,
			Params:     f.params,
			Required:   f.required,
			Family:     family,
			Doc:        f.doc,
			Fn:         f.fn,
			Descriptor: f.descriptor,
		})
	}
}

// connect builds the clients for one call. The connector reads the
// connection keys out of the call's own arguments.
func (e *Env) connect(ctx context.Context, req *loader.Request) (azure.Clients, error) {
	if e.Connector == nil {
		return nil, fmt.Errorf("no Azure connector configured")
	}
	profile := req.Args.Clone()
	return e.Connector(ctx, &profile)
}

// describe returns the ARM descriptor of an SDK model.
func describe(model any) (map[string]any, error) {
	desc, err := common.ConvertInterfaceToMap(model)
	if err != nil {
		return nil, fmt.Errorf("The object model could not be parsed. (%v)", err)
	}
	if desc == nil {
		desc = map[string]any{}
	}
	return desc, nil
}

// keyed returns a list of SDK models as a map keyed by resource name.
func keyed[T any](items []*T) (map[string]any, error) {
	maps, err := common.ConvertSliceToMaps(items)
	if err != nil {
		return nil, fmt.Errorf("The object model could not be parsed. (%v)", err)
	}
	return common.KeyByField(maps, "name"), nil
}

// ensureLocation fills in args["location"] from the resource group when it
// was not given. Only a missing group becomes ErrNoLocation; other lookup
// errors are returned as they are.
func ensureLocation(ctx context.Context, clients azure.Clients, args models.BasicConfig, resourceGroup string) error {
	if args.Has("location") {
		return nil
	}
	groups, err := clients.ResourceGroups()
	if err != nil {
		return err
	}
	group, err := groups.Get(ctx, azure.Ref{Name: resourceGroup})
	if err != nil && !azure.IsNotFound(err) {
		return err
	}
	location := locationOf(group)
	if err != nil || len(location) == 0 {
		logrus.WithError(err).WithField("resource_group", resourceGroup).Error(ErrNoLocation.Error())
		return ErrNoLocation
	}
	args.SetKeyWithValue("location", location)
	return nil
}

// locationOf returns the location a resource group lives in.
func locationOf(group *armresources.ResourceGroup) string {
	if group == nil || group.Location == nil {
		return ""
	}
	return *group.Location
}

// ResourceArgs is the name and resource_group pair most functions take.
type ResourceArgs struct {
	Name          string `mapstructure:"name" validate:"required"`
	ResourceGroup string `mapstructure:"resource_group" validate:"required"`
}

func (r ResourceArgs) Ref() azure.Ref {
	return azure.Ref{ResourceGroup: r.ResourceGroup, Name: r.Name}
}

// decodeRef reads name and resource_group from a request.
func decodeRef(req *loader.Request) (azure.Ref, error) {
	var r ResourceArgs
	if err := loader.Decode(req.Function, req.Args, &r); err != nil {
		return azure.Ref{}, err
	}
	return r.Ref(), nil
}

var nameAndGroup = []string{"name", "resource_group"}
