package states

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
	"github.com/thand-io/azurerm/internal/modules"
)

const keyModule = "azurerm_keyvault_key"

var keyParams = []string{"name", "key_type", "vault_url"}

// keySize is the modulus length in bits of an RSA JSON web key.
func keySize(jwk models.BasicConfig) int {
	n, ok := jwk.GetString("n")
	if !ok {
		return 0
	}
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		if data, err := enc.DecodeString(n); err == nil {
			return len(data) * 8
		}
	}
	return 0
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	slices.Sort(out)
	return out
}

// keyChanges reports the differences that need a new key version and those
// an update of the latest version can apply.
func keyChanges(actual, args models.BasicConfig) (recreate, update map[string]any, err error) {
	recreate, update = map[string]any{}, map[string]any{}
	jwkMap, _ := actual.GetMap("key")
	jwk := models.BasicConfig(jwkMap)

	kind, _ := args.GetString("key_type")
	desiredType, err := modules.KeyType(kind, args.GetBoolWithDefault("hardware_protected", false))
	if err != nil {
		return nil, nil, err
	}
	currentType, _ := jwk.GetString("kty")
	if !strings.EqualFold(currentType, string(desiredType)) {
		recreate["key_type"] = change(currentType, string(desiredType))
	}
	if size, ok := args.GetInt("size"); ok && size > 0 && strings.HasPrefix(strings.ToUpper(currentType), "RSA") {
		if current := keySize(jwk); current != size {
			recreate["size"] = change(current, size)
		}
	}
	if curve, ok := args.GetString("curve"); ok && len(curve) > 0 {
		if current, _ := jwk.GetString("crv"); !strings.EqualFold(current, curve) {
			recreate["curve"] = change(current, curve)
		}
	}

	if ops, ok := args.Get("key_operations"); ok {
		desired := lowerAll(cast.ToStringSlice(ops))
		current := lowerAll(cast.ToStringSlice(jwk["key_ops"]))
		if !slices.Equal(current, desired) {
			update["key_operations"] = change(current, desired)
		}
	}
	attributeChanges(actual, args, update)
	return recreate, update, nil
}

func (e *Env) keyPresent(ctx context.Context, req *loader.Request) (any, error) {
	name, args, res := connection(req)
	if res != nil {
		return res.AsMap(), nil
	}
	res = models.NewStateResult(name)
	noun := "Key " + name

	actual, err := e.lookup(ctx, keyModule+".get_key", args.Without("version"))
	if err != nil {
		return failure(res, err, "Unable to look up %s!", noun)
	}

	if actual == nil {
		desired := map[string]any{"name": name}
		for _, key := range []string{"key_type", "size", "curve", "key_operations", "enabled", "expires_on", "not_before", "tags"} {
			if v, ok := args.Get(key); ok {
				desired[key] = v
			}
		}
		res.Changes = change(map[string]any{}, desired)
		if req.Test {
			return res.Pending(fmt.Sprintf("%s would be created.", noun)).AsMap(), nil
		}
		created, err := e.mutate(ctx, keyModule+".create_key", args)
		if err != nil {
			return failure(res, err, "Failed to create %s!", noun)
		}
		res.Changes = change(map[string]any{}, created)
		return res.Succeed(fmt.Sprintf("%s has been created.", noun)).AsMap(), nil
	}

	recreate, update, err := keyChanges(models.BasicConfig(actual), args)
	if err != nil {
		return failure(res, err, "Unable to compare %s!", noun)
	}
	for k, v := range recreate {
		res.Changes[k] = v
	}
	for k, v := range update {
		res.Changes[k] = v
	}
	if len(res.Changes) == 0 {
		return res.Succeed(fmt.Sprintf("%s is already present.", noun)).AsMap(), nil
	}
	if req.Test {
		return res.Pending(fmt.Sprintf("%s would be updated.", noun)).AsMap(), nil
	}

	if len(recreate) > 0 {
		_, err = e.mutate(ctx, keyModule+".create_key", args)
	} else {
		_, err = e.mutate(ctx, keyModule+".update_key_properties", args.Without("version"))
	}
	if err != nil {
		return failure(res, err, "Failed to update %s!", noun)
	}
	return res.Succeed(fmt.Sprintf("%s has been updated.", noun)).AsMap(), nil
}

func (e *Env) keyAbsent(ctx context.Context, req *loader.Request) (any, error) {
	name, args, res := connection(req)
	if res != nil {
		return res.AsMap(), nil
	}
	res = models.NewStateResult(name)
	noun := "Key " + name
	purge := args.GetBoolWithDefault("purge", false)
	target := args.Without("purge", "wait", "version")

	actual, err := e.lookup(ctx, keyModule+".get_key", target)
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

	deleteArgs := target.Clone()
	deleteArgs["wait"] = purge || args.GetBoolWithDefault("wait", false)
	if _, err := e.mutate(ctx, keyModule+".begin_delete_key", deleteArgs); err != nil {
		return failure(res, err, "Failed to delete %s!", noun)
	}
	if purge {
		if _, err := e.mutate(ctx, keyModule+".purge_deleted_key", target); err != nil {
			return failure(res, err, "Failed to purge %s!", noun)
		}
		return res.Succeed(fmt.Sprintf("%s has been deleted and purged.", noun)).AsMap(), nil
	}
	return res.Succeed(fmt.Sprintf("%s has been deleted.", noun)).AsMap(), nil
}

func (e *Env) registerKeys(reg *loader.Registry) {
	reg.Register(loader.FuncSpec{
		Name:     keyModule + ".present",
		Params:   keyParams,
		Required: keyParams,
		Family:   "keyvault",
		Doc:      "Ensure a key of the given type exists with the given attributes and tags.",
		Fn:       e.keyPresent,
	})
	reg.Register(loader.FuncSpec{
		Name:     keyModule + ".absent",
		Params:   []string{"name", "vault_url", "purge", "wait"},
		Required: []string{"name", "vault_url"},
		Family:   "keyvault",
		Doc:      "Ensure a key does not exist.",
		Fn:       e.keyAbsent,
	})
}
