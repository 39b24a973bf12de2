package states

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const secretModule = "azurerm_keyvault_secret"

// Secret values never appear in changes.
const (
	redactedOld = "REDACTED_OLD_VALUE"
	redactedNew = "REDACTED_NEW_VALUE"
	redacted    = "REDACTED"
)

var secretParams = []string{"name", "value", "vault_url"}

// redact returns desc without the secret value.
func redact(desc map[string]any) map[string]any {
	out := models.BasicConfig(desc).Without("value")
	return out
}

// attributeChanges compares the attributes and tags requested in args with
// those of a live secret or key.
func attributeChanges(actual, args models.BasicConfig, changes map[string]any) {
	attrs, _ := actual.GetMap("attributes")
	live := models.BasicConfig(attrs)

	if enabled, ok := args.GetBool("enabled"); ok {
		current, _ := live.GetBool("enabled")
		if current != enabled {
			changes["enabled"] = change(current, enabled)
		}
	}
	for arg, attr := range map[string]string{"expires_on": "exp", "not_before": "nbf"} {
		value, ok := args.Get(arg)
		if !ok {
			continue
		}
		desired, err := cast.ToTimeE(value)
		if err != nil {
			changes[arg] = change(live[attr], value)
			continue
		}
		current, _ := live.GetInt(attr)
		if int64(current) != desired.Unix() {
			changes[arg] = change(live[attr], desired.Unix())
		}
	}

	oldTags, newTags := stringMap(actual["tags"]), stringMap(args["tags"])
	if !equalTags(oldTags, newTags) {
		changes["tags"] = change(tagsValue(actual["tags"]), tagsValue(args["tags"]))
	}
}

func equalTags(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}

func (e *Env) secretPresent(ctx context.Context, req *loader.Request) (any, error) {
	name, args, res := connection(req)
	if res != nil {
		return res.AsMap(), nil
	}
	res = models.NewStateResult(name)
	noun := "Secret " + name
	value, _ := args.GetString("value")

	actual, err := e.lookup(ctx, secretModule+".get_secret", args.Without("version"))
	if err != nil {
		return failure(res, err, "Unable to look up %s!", noun)
	}

	if actual == nil {
		desired := map[string]any{"name": name, "value": redacted}
		for _, key := range []string{"content_type", "enabled", "expires_on", "not_before", "tags"} {
			if v, ok := args.Get(key); ok {
				desired[key] = v
			}
		}
		res.Changes = change(map[string]any{}, desired)
		if req.Test {
			return res.Pending(fmt.Sprintf("%s would be created.", noun)).AsMap(), nil
		}
		if _, err := e.mutate(ctx, secretModule+".set_secret", args); err != nil {
			return failure(res, err, "Failed to create %s!", noun)
		}
		return res.Succeed(fmt.Sprintf("%s has been created.", noun)).AsMap(), nil
	}

	live := models.BasicConfig(actual)
	changes := map[string]any{}
	valueChanged := live.GetStringWithDefault("value", "") != value
	if valueChanged {
		changes["value"] = change(redactedOld, redactedNew)
	}
	if contentType, ok := args.GetString("content_type"); ok {
		current, _ := live.GetString("contentType")
		if !strings.EqualFold(current, contentType) {
			changes["content_type"] = change(current, contentType)
		}
	}
	attributeChanges(live, args, changes)
	res.Changes = changes

	if len(changes) == 0 {
		return res.Succeed(fmt.Sprintf("%s is already present.", noun)).AsMap(), nil
	}
	if req.Test {
		return res.Pending(fmt.Sprintf("%s would be updated.", noun)).AsMap(), nil
	}

	if valueChanged {
		_, err = e.mutate(ctx, secretModule+".set_secret", args)
	} else {
		_, err = e.mutate(ctx, secretModule+".update_secret_properties", args.Without("value", "version"))
	}
	if err != nil {
		return failure(res, err, "Failed to update %s!", noun)
	}
	return res.Succeed(fmt.Sprintf("%s has been updated.", noun)).AsMap(), nil
}

func (e *Env) secretAbsent(ctx context.Context, req *loader.Request) (any, error) {
	name, args, res := connection(req)
	if res != nil {
		return res.AsMap(), nil
	}
	res = models.NewStateResult(name)
	noun := "Secret " + name
	purge := args.GetBoolWithDefault("purge", false)
	wait := args.GetBoolWithDefault("wait", false) || purge
	target := args.Without("purge", "wait", "value", "version")

	actual, err := e.lookup(ctx, secretModule+".get_secret", target)
	if err != nil {
		return failure(res, err, "Unable to look up %s!", noun)
	}

	if actual == nil {
		if !purge {
			return res.Succeed(fmt.Sprintf("%s was not found.", noun)).AsMap(), nil
		}
		deleted, err := e.lookup(ctx, secretModule+".get_deleted_secret", target)
		if err != nil {
			return failure(res, err, "Unable to look up %s!", noun)
		}
		if deleted == nil {
			return res.Succeed(fmt.Sprintf("%s was not found.", noun)).AsMap(), nil
		}
		res.Changes = change(redact(deleted), map[string]any{})
		if req.Test {
			return res.Pending(fmt.Sprintf("%s would be purged.", noun)).AsMap(), nil
		}
		if _, err := e.mutate(ctx, secretModule+".purge_deleted_secret", target); err != nil {
			return failure(res, err, "Failed to purge %s!", noun)
		}
		return res.Succeed(fmt.Sprintf("%s has been purged.", noun)).AsMap(), nil
	}

	res.Changes = change(redact(actual), map[string]any{})
	if req.Test {
		return res.Pending(fmt.Sprintf("%s would be deleted.", noun)).AsMap(), nil
	}

	deleteArgs := target.Clone()
	deleteArgs["wait"] = wait
	if _, err := e.mutate(ctx, secretModule+".delete_secret", deleteArgs); err != nil {
		return failure(res, err, "Failed to delete %s!", noun)
	}
	if purge {
		if _, err := e.mutate(ctx, secretModule+".purge_deleted_secret", target); err != nil {
			return failure(res, err, "Failed to purge %s!", noun)
		}
		return res.Succeed(fmt.Sprintf("%s has been deleted and purged.", noun)).AsMap(), nil
	}
	return res.Succeed(fmt.Sprintf("%s has been deleted.", noun)).AsMap(), nil
}

func (e *Env) registerSecrets(reg *loader.Registry) {
	reg.Register(loader.FuncSpec{
		Name:     secretModule + ".present",
		Params:   secretParams,
		Required: secretParams,
		Family:   "keyvault",
		Doc:      "Ensure a secret has the given value, attributes and tags.",
		Fn:       e.secretPresent,
	})
	reg.Register(loader.FuncSpec{
		Name:     secretModule + ".absent",
		Params:   []string{"name", "vault_url", "purge", "wait"},
		Required: []string{"name", "vault_url"},
		Family:   "keyvault",
		Doc:      "Ensure a secret does not exist. With purge it is also removed from the deleted secrets.",
		Fn:       e.secretAbsent,
	})
}
