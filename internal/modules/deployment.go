package modules

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
)

// deploymentArgs describe a template deployment. Parameters and template
// are given inline or as links; inline values win.
type deploymentArgs struct {
	ResourceArgs   `mapstructure:",squash"`
	Mode           string `mapstructure:"deploy_mode" validate:"required"`
	DebugSetting   any    `mapstructure:"debug_setting"`
	Parameters     any    `mapstructure:"deploy_params"`
	ParametersLink any    `mapstructure:"parameters_link"`
	Template       any    `mapstructure:"deploy_template"`
	TemplateLink   any    `mapstructure:"template_link"`
}

var deploymentDefaults = deploymentArgs{Mode: "incremental"}

type deploymentOperationsArgs struct {
	ResourceArgs `mapstructure:",squash"`
	ResultLimit  int32 `mapstructure:"result_limit" validate:"min=0"`
}

type deploymentOperationArgs struct {
	Operation     string `mapstructure:"operation" validate:"required"`
	Deployment    string `mapstructure:"deployment" validate:"required"`
	ResourceGroup string `mapstructure:"resource_group" validate:"required"`
}

func deploymentMode(mode string) (armresources.DeploymentMode, error) {
	for _, m := range armresources.PossibleDeploymentModeValues() {
		if strings.EqualFold(string(m), mode) {
			return m, nil
		}
	}
	return "", fmt.Errorf("deploy_mode must be incremental or complete, not %q", mode)
}

// debugSetting accepts a detail level such as "requestContent" or a
// mapping with a detail_level key. It defaults to "none".
func debugSetting(v any) *armresources.DebugSetting {
	if v == nil {
		v = "none"
	}
	if m, ok := v.(map[string]any); ok {
		for _, k := range []string{"detail_level", "detailLevel"} {
			if level, ok := m[k]; ok {
				return &armresources.DebugSetting{DetailLevel: to.Ptr(cast.ToString(level))}
			}
		}
		return nil
	}
	level := cast.ToString(v)
	if len(level) == 0 {
		return nil
	}
	return &armresources.DebugSetting{DetailLevel: to.Ptr(level)}
}

// linkURI reads a link given as a URI string or as a mapping with a uri key.
func linkURI(arg string, v any) (string, error) {
	switch link := v.(type) {
	case nil:
		return "", nil
	case map[string]any:
		uri := cast.ToString(link["uri"])
		if len(uri) == 0 {
			return "", fmt.Errorf("%s has no uri", arg)
		}
		return uri, nil
	default:
		return cast.ToString(link), nil
	}
}

// deploymentDocument resolves one of the parameters or template pair. An
// inline value must be a JSON object. A link is kept as a link when it is
// http(s); anything else is read as a local JSON file and sent inline.
func deploymentDocument(arg string, inline any, linkArg string, link any) (map[string]any, string, error) {
	if inline != nil {
		body, err := cast.ToStringMapE(inline)
		if err != nil {
			return nil, "", fmt.Errorf("%s must be a JSON object: %w", arg, err)
		}
		return body, "", nil
	}

	uri, err := linkURI(linkArg, link)
	if err != nil || len(uri) == 0 {
		return nil, "", err
	}
	lower := strings.ToLower(uri)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return nil, uri, nil
	}

	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("unable to read %s: %w", linkArg, err)
	}
	body, err := cast.ToStringMapE(string(data))
	if err != nil {
		logrus.WithError(err).WithField("path", path).Error("Unable to parse deployment document")
		return nil, "", fmt.Errorf("%s is not a JSON object: %w", path, err)
	}
	return body, "", nil
}

func (a *deploymentArgs) deployment() (armresources.Deployment, error) {
	mode, err := deploymentMode(a.Mode)
	if err != nil {
		return armresources.Deployment{}, err
	}
	props := &armresources.DeploymentProperties{
		Mode:         to.Ptr(mode),
		DebugSetting: debugSetting(a.DebugSetting),
	}

	params, paramsURI, err := deploymentDocument("deploy_params", a.Parameters, "parameters_link", a.ParametersLink)
	if err != nil {
		return armresources.Deployment{}, err
	}
	if params != nil {
		props.Parameters = params
	}
	if len(paramsURI) > 0 {
		props.ParametersLink = &armresources.ParametersLink{URI: to.Ptr(paramsURI)}
	}

	template, templateURI, err := deploymentDocument("deploy_template", a.Template, "template_link", a.TemplateLink)
	if err != nil {
		return armresources.Deployment{}, err
	}
	if template != nil {
		props.Template = template
	}
	if len(templateURI) > 0 {
		props.TemplateLink = &armresources.TemplateLink{URI: to.Ptr(templateURI)}
	}
	if props.Template == nil && props.TemplateLink == nil {
		return armresources.Deployment{}, fmt.Errorf("deploy_template or template_link is required")
	}

	return armresources.Deployment{Properties: props}, nil
}

// validateDeployment turns a template error reported by validation into an
// error.
func validateDeployment(ctx context.Context, api azure.DeploymentsAPI, ref azure.Ref, deployment armresources.Deployment) (*armresources.DeploymentValidateResult, error) {
	result, err := api.Validate(ctx, ref, deployment)
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		var code, message string
		if result.Error.Code != nil {
			code = *result.Error.Code
		}
		if result.Error.Message != nil {
			message = *result.Error.Message
		}
		return nil, fmt.Errorf("deployment %s failed validation: %s: %s", ref.Name, code, message)
	}
	return result, nil
}

func deploymentFunc[T any](e *Env, defaults T, fn func(ctx context.Context, api azure.DeploymentsAPI, args *T) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		args := defaults
		if err := loader.Decode(req.Function, req.Args, &args); err != nil {
			return nil, err
		}
		clients, err := e.connect(ctx, req)
		if err != nil {
			return nil, err
		}
		api, err := clients.Deployments()
		if err != nil {
			return nil, err
		}
		return fn(ctx, api, &args)
	}
}

var deploymentParams = []string{"name", "resource_group", "deploy_mode", "debug_setting",
	"deploy_params", "parameters_link", "deploy_template", "template_link"}

func (e *Env) registerDeployments(reg *loader.Registry) {
	register(reg, resourceModule, "resource", []function{
		{
			name: "deployment_create_or_update", params: deploymentParams, required: []string{"name", "resource_group"},
			doc: "Validate and deploy a template to a resource group.",
			fn: deploymentFunc(e, deploymentDefaults, func(ctx context.Context, api azure.DeploymentsAPI, args *deploymentArgs) (any, error) {
				deployment, err := args.deployment()
				if err != nil {
					return nil, err
				}
				if _, err := validateDeployment(ctx, api, args.Ref(), deployment); err != nil {
					return nil, err
				}
				result, err := api.CreateOrUpdate(ctx, args.Ref(), deployment)
				if err != nil {
					return nil, err
				}
				return describe(result)
			}),
		},
		{
			name: "deployment_validate", params: deploymentParams, required: []string{"name", "resource_group"},
			doc: "Check whether a template is syntactically correct and would be accepted by Azure Resource Manager.",
			fn: deploymentFunc(e, deploymentDefaults, func(ctx context.Context, api azure.DeploymentsAPI, args *deploymentArgs) (any, error) {
				deployment, err := args.deployment()
				if err != nil {
					return nil, err
				}
				result, err := validateDeployment(ctx, api, args.Ref(), deployment)
				if err != nil {
					return nil, err
				}
				return describe(result)
			}),
		},
		{
			name: "deployment_get", params: []string{"name", "resource_group"}, required: []string{"name", "resource_group"},
			doc: "Get details about a deployment.",
			fn: deploymentFunc(e, ResourceArgs{}, func(ctx context.Context, api azure.DeploymentsAPI, args *ResourceArgs) (any, error) {
				deployment, err := api.Get(ctx, args.Ref())
				if err != nil {
					return nil, err
				}
				return describe(deployment)
			}),
		},
		{
			name: "deployment_check_existence", params: []string{"name", "resource_group"}, required: []string{"name", "resource_group"},
			doc: "Check whether a deployment exists.",
			fn: deploymentFunc(e, ResourceArgs{}, func(ctx context.Context, api azure.DeploymentsAPI, args *ResourceArgs) (any, error) {
				return api.CheckExistence(ctx, args.Ref())
			}),
		},
		{
			name: "deployment_delete", params: []string{"name", "resource_group"}, required: []string{"name", "resource_group"},
			doc: "Delete a deployment.",
			fn: deploymentFunc(e, ResourceArgs{}, func(ctx context.Context, api azure.DeploymentsAPI, args *ResourceArgs) (any, error) {
				if err := api.Delete(ctx, args.Ref()); err != nil {
					return nil, err
				}
				return true, nil
			}),
		},
		{
			name: "deployment_cancel", params: []string{"name", "resource_group"}, required: []string{"name", "resource_group"},
			doc: "Cancel a deployment that is still running. The result key reports whether it was cancelled.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				result, err := deploymentFunc(e, ResourceArgs{}, func(ctx context.Context, api azure.DeploymentsAPI, args *ResourceArgs) (any, error) {
					return map[string]any{"result": true}, api.Cancel(ctx, args.Ref())
				})(ctx, req)
				if err == nil || loader.IsFatal(err) {
					return result, err
				}
				failed := loader.SoftFail("resource", err, req.Args.GetStringWithDefault("azurerm_log_level", "error"))
				failed["result"] = false
				return failed, nil
			},
		},
		{
			name: "deployment_export_template", params: []string{"name", "resource_group"}, required: []string{"name", "resource_group"},
			doc: "Export the template used by a deployment.",
			fn: deploymentFunc(e, ResourceArgs{}, func(ctx context.Context, api azure.DeploymentsAPI, args *ResourceArgs) (any, error) {
				exported, err := api.ExportTemplate(ctx, args.Ref())
				if err != nil {
					return nil, err
				}
				return describe(exported)
			}),
		},
		{
			name: "deployments_list", params: []string{"resource_group"}, required: []string{"resource_group"},
			doc: "List the deployments of a resource group.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.Deployments()
				if err != nil {
					return nil, err
				}
				group, _ := req.Args.GetString("resource_group")
				deployments, err := api.List(ctx, azure.Ref{ResourceGroup: group})
				if err != nil {
					return nil, err
				}
				return keyed(deployments)
			},
		},
		{
			name: "deployment_operations_list", params: []string{"name", "resource_group", "result_limit"}, required: []string{"name", "resource_group"},
			doc: "List the operations of a deployment, keyed by operation ID.",
			fn: deploymentFunc(e, deploymentOperationsArgs{ResultLimit: 10}, func(ctx context.Context, api azure.DeploymentsAPI, args *deploymentOperationsArgs) (any, error) {
				ref := azure.Ref{ResourceGroup: args.ResourceGroup, Parent: args.Name}
				operations, err := api.ListOperations(ctx, ref, args.ResultLimit)
				if err != nil {
					return nil, err
				}
				maps, err := common.ConvertSliceToMaps(operations)
				if err != nil {
					return nil, err
				}
				return common.KeyByField(maps, "operationId"), nil
			}),
		},
		{
			name: "deployment_operation_get", params: []string{"operation", "deployment", "resource_group"},
			required: []string{"operation", "deployment", "resource_group"},
			doc:      "Get one operation of a deployment.",
			fn: deploymentFunc(e, deploymentOperationArgs{}, func(ctx context.Context, api azure.DeploymentsAPI, args *deploymentOperationArgs) (any, error) {
				operation, err := api.GetOperation(ctx, azure.Ref{
					ResourceGroup: args.ResourceGroup,
					Parent:        args.Deployment,
					Name:          args.Operation,
				})
				if err != nil {
					return nil, err
				}
				return describe(operation)
			}),
		},
	})
}
