package modules

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
)

const keyModule = "azurerm_keyvault_key"

type keyArgs struct {
	VaultObjectArgs `mapstructure:",squash"`
	AttributeArgs   `mapstructure:",squash"`
	KeyType         string   `mapstructure:"key_type"`
	Size            int32    `mapstructure:"size"`
	Curve           string   `mapstructure:"curve"`
	PublicExponent  int32    `mapstructure:"public_exponent"`
	KeyOperations   []string `mapstructure:"key_operations"`
	HardwareProtect bool     `mapstructure:"hardware_protected"`
}

// KeyType returns the service key type for a key_type argument. RSA and EC
// keys become their HSM variants when hardware protection is requested.
func KeyType(kind string, hsm bool) (azkeys.KeyType, error) {
	for _, known := range azkeys.PossibleKeyTypeValues() {
		if !strings.EqualFold(string(known), kind) {
			continue
		}
		if hsm && !strings.HasSuffix(string(known), "-HSM") {
			return azkeys.KeyType(string(known) + "-HSM"), nil
		}
		return known, nil
	}
	return "", fmt.Errorf("unknown key type %q", kind)
}

func (a *keyArgs) attributes() *azkeys.KeyAttributes {
	if !a.hasAttributes() {
		return nil
	}
	return &azkeys.KeyAttributes{
		Enabled:   a.Enabled,
		Expires:   a.ExpiresOn,
		NotBefore: a.NotBefore,
	}
}

func (a *keyArgs) operations() []*azkeys.KeyOperation {
	if len(a.KeyOperations) == 0 {
		return nil
	}
	ops := make([]*azkeys.KeyOperation, 0, len(a.KeyOperations))
	for _, op := range a.KeyOperations {
		ops = append(ops, to.Ptr(azkeys.KeyOperation(strings.ToLower(op))))
	}
	return ops
}

// createParameters builds the create request for a key of the given type.
func (a *keyArgs) createParameters(kind string) (azkeys.CreateKeyParameters, error) {
	kty, err := KeyType(kind, a.HardwareProtect)
	if err != nil {
		return azkeys.CreateKeyParameters{}, err
	}
	params := azkeys.CreateKeyParameters{
		Kty:           to.Ptr(kty),
		KeyAttributes: a.attributes(),
		KeyOps:        a.operations(),
		Tags:          a.tags(),
	}
	if a.Size > 0 {
		params.KeySize = to.Ptr(a.Size)
	}
	if a.PublicExponent > 0 {
		params.PublicExponent = to.Ptr(a.PublicExponent)
	}
	if len(a.Curve) > 0 {
		params.Curve = to.Ptr(azkeys.CurveName(strings.ToUpper(a.Curve)))
	}
	return params, nil
}

// importKeyArgs carry a JSON web key. Binary members are base64url encoded.
type importKeyArgs struct {
	Key keyArgs `mapstructure:",squash"`
	N   string  `mapstructure:"n"`
	E   string  `mapstructure:"e"`
	D   string  `mapstructure:"d"`
	DP  string  `mapstructure:"dp"`
	DQ  string  `mapstructure:"dq"`
	QI  string  `mapstructure:"qi"`
	P   string  `mapstructure:"p"`
	Q   string  `mapstructure:"q"`
	K   string  `mapstructure:"k"`
	T   string  `mapstructure:"t"`
	X   string  `mapstructure:"x"`
	Y   string  `mapstructure:"y"`
}

func webKeyBytes(member, value string) ([]byte, error) {
	if len(value) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimRight(value, "=")
	if data, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s must be base64url encoded: %w", member, err)
	}
	return data, nil
}

// importParameters builds the import request. Key types are given the
// way the service spells them, with "_" accepted for "-".
func (a *importKeyArgs) importParameters() (azkeys.ImportKeyParameters, error) {
	kty, err := KeyType(strings.ReplaceAll(a.Key.KeyType, "_", "-"), false)
	if err != nil {
		return azkeys.ImportKeyParameters{}, err
	}
	jwk := &azkeys.JSONWebKey{Kty: to.Ptr(kty), KeyOps: a.Key.operations()}
	if len(a.Key.Curve) > 0 {
		jwk.Crv = to.Ptr(azkeys.CurveName(strings.ToUpper(strings.ReplaceAll(a.Key.Curve, "_", "-"))))
	}
	members := []struct {
		name  string
		value string
		dst   *[]byte
	}{
		{"n", a.N, &jwk.N}, {"e", a.E, &jwk.E}, {"d", a.D, &jwk.D},
		{"dp", a.DP, &jwk.DP}, {"dq", a.DQ, &jwk.DQ}, {"qi", a.QI, &jwk.QI},
		{"p", a.P, &jwk.P}, {"q", a.Q, &jwk.Q}, {"k", a.K, &jwk.K},
		{"t", a.T, &jwk.T}, {"x", a.X, &jwk.X}, {"y", a.Y, &jwk.Y},
	}
	for _, m := range members {
		data, err := webKeyBytes(m.name, m.value)
		if err != nil {
			return azkeys.ImportKeyParameters{}, err
		}
		*m.dst = data
	}
	return azkeys.ImportKeyParameters{
		Key:           jwk,
		HSM:           to.Ptr(a.Key.HardwareProtect),
		KeyAttributes: a.Key.attributes(),
		Tags:          a.Key.tags(),
	}, nil
}

type deleteKeyArgs struct {
	VaultObjectArgs `mapstructure:",squash"`
	Wait            bool `mapstructure:"wait"`
}

func (e *Env) keys(ctx context.Context, req *loader.Request, vaultURL string) (azure.KeysAPI, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	return clients.Keys(vaultURL)
}

// keyFunc decodes args into T and hands the vault's keys client to fn.
func keyFunc[T any](e *Env, vaultURL func(*T) string, fn func(ctx context.Context, api azure.KeysAPI, args *T) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		args := new(T)
		if err := loader.Decode(req.Function, req.Args, args); err != nil {
			return nil, err
		}
		api, err := e.keys(ctx, req, vaultURL(args))
		if err != nil {
			return nil, err
		}
		return fn(ctx, api, args)
	}
}

func keyVault(a *keyArgs) string             { return a.VaultURL }
func importKeyVault(a *importKeyArgs) string { return a.Key.VaultURL }
func deleteKeyVault(a *deleteKeyArgs) string { return a.VaultURL }

// createKey returns the body of create_key, create_rsa_key and
// create_ec_key. An empty kind takes the key_type argument.
func (e *Env) createKey(kind string) loader.Func {
	return keyFunc(e, keyVault, func(ctx context.Context, api azure.KeysAPI, args *keyArgs) (any, error) {
		if len(kind) > 0 {
			args.KeyType = kind
		}
		params, err := args.createParameters(args.KeyType)
		if err != nil {
			return nil, err
		}
		key, err := api.CreateKey(ctx, args.Name, params)
		if err != nil {
			return nil, err
		}
		return describe(key)
	})
}

func (e *Env) registerKeys(reg *loader.Registry) {
	identity := []string{"name", "vault_url"}
	vault := []string{"vault_url"}

	register(reg, keyModule, "keyvault", []function{
		{
			name: "create_key", params: []string{"name", "key_type", "vault_url"},
			required: []string{"name", "key_type", "vault_url"},
			doc:      "Create a key, or a new version of an existing key.",
			fn:       e.createKey(""),
		},
		{
			name: "create_rsa_key", params: []string{"name", "vault_url", "size"}, required: identity,
			doc: "Create an RSA key.",
			fn:  e.createKey(string(azkeys.KeyTypeRSA)),
		},
		{
			name: "create_ec_key", params: []string{"name", "vault_url", "curve"}, required: identity,
			doc: "Create an elliptic curve key.",
			fn:  e.createKey(string(azkeys.KeyTypeEC)),
		},
		{
			name: "import_key", params: []string{"name", "vault_url", "key_type"},
			required: []string{"name", "vault_url", "key_type"},
			doc:      "Import key material created elsewhere as a new version of a key.",
			fn: keyFunc(e, importKeyVault, func(ctx context.Context, api azure.KeysAPI, args *importKeyArgs) (any, error) {
				params, err := args.importParameters()
				if err != nil {
					return nil, err
				}
				key, err := api.ImportKey(ctx, args.Key.Name, params)
				if err != nil {
					return nil, err
				}
				return describe(key)
			}),
		},
		{
			name: "get_key", params: []string{"name", "vault_url", "version"}, required: identity,
			doc: "Get a key, the latest version unless version is given.",
			fn: keyFunc(e, objectVault, func(ctx context.Context, api azure.KeysAPI, args *VaultObjectArgs) (any, error) {
				key, err := api.GetKey(ctx, args.Name, args.Version)
				if err != nil {
					return nil, err
				}
				return describe(key)
			}),
		},
		{
			name: "list", params: vault, required: vault,
			doc: "List the properties of every key in a vault.",
			fn: keyFunc(e, plainVault, func(ctx context.Context, api azure.KeysAPI, args *vaultArgs) (any, error) {
				items, err := api.ListKeyProperties(ctx)
				if err != nil {
					return nil, err
				}
				return keyedByVaultID(items, false)
			}),
		},
		{
			name: "list_properties_of_key_versions", params: identity, required: identity,
			doc: "List the properties of every version of a key, keyed by version.",
			fn: keyFunc(e, objectVault, func(ctx context.Context, api azure.KeysAPI, args *VaultObjectArgs) (any, error) {
				items, err := api.ListKeyPropertiesVersions(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return keyedByVaultID(items, true)
			}),
		},
		{
			name: "begin_delete_key", params: []string{"name", "vault_url", "wait"}, required: identity,
			doc: "Delete a key. With wait, block until the deletion is complete.",
			fn: keyFunc(e, deleteKeyVault, func(ctx context.Context, api azure.KeysAPI, args *deleteKeyArgs) (any, error) {
				deleted, err := api.DeleteKey(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				if args.Wait {
					err := waitForDeletion(ctx, func(ctx context.Context) error {
						_, err := api.GetDeletedKey(ctx, args.Name)
						return err
					})
					if err != nil {
						return nil, err
					}
				}
				return describe(deleted)
			}),
		},
		{
			name: "get_deleted_key", params: identity, required: identity,
			doc: "Get a deleted key.",
			fn: keyFunc(e, objectVault, func(ctx context.Context, api azure.KeysAPI, args *VaultObjectArgs) (any, error) {
				deleted, err := api.GetDeletedKey(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return describe(deleted)
			}),
		},
		{
			name: "purge_deleted_key", params: identity, required: identity,
			doc: "Permanently delete a deleted key.",
			fn: keyFunc(e, objectVault, func(ctx context.Context, api azure.KeysAPI, args *VaultObjectArgs) (any, error) {
				if err := api.PurgeDeletedKey(ctx, args.Name); err != nil {
					return nil, err
				}
				return true, nil
			}),
		},
		{
			name: "begin_recover_deleted_key", params: identity, required: identity,
			doc: "Recover a deleted key to its latest version.",
			fn: keyFunc(e, objectVault, func(ctx context.Context, api azure.KeysAPI, args *VaultObjectArgs) (any, error) {
				key, err := api.RecoverDeletedKey(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return describe(key)
			}),
		},
		{
			name: "list_deleted_keys", params: vault, required: vault,
			doc: "List deleted keys in a vault.",
			fn: keyFunc(e, plainVault, func(ctx context.Context, api azure.KeysAPI, args *vaultArgs) (any, error) {
				items, err := api.ListDeletedKeys(ctx)
				if err != nil {
					return nil, err
				}
				return keyedByVaultID(items, false)
			}),
		},
		{
			name: "update_key_properties", params: []string{"name", "vault_url", "version"}, required: identity,
			doc: "Update the attributes, permitted operations or tags of a key version.",
			fn: keyFunc(e, keyVault, func(ctx context.Context, api azure.KeysAPI, args *keyArgs) (any, error) {
				key, err := api.UpdateKey(ctx, args.Name, args.Version, azkeys.UpdateKeyParameters{
					KeyAttributes: args.attributes(),
					KeyOps:        args.operations(),
					Tags:          args.tags(),
				})
				if err != nil {
					return nil, err
				}
				return describe(key)
			}),
		},
		{
			name: "backup_key", params: identity, required: identity,
			doc: "Back up every version of a key. The backup is returned base64 encoded.",
			fn: keyFunc(e, objectVault, func(ctx context.Context, api azure.KeysAPI, args *VaultObjectArgs) (any, error) {
				data, err := api.BackupKey(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return base64.StdEncoding.EncodeToString(data), nil
			}),
		},
		{
			name: "restore_key_backup", params: []string{"backup", "vault_url"},
			required: []string{"backup", "vault_url"},
			doc:      "Restore a key from a base64 encoded backup.",
			fn: keyFunc(e, restoreVault, func(ctx context.Context, api azure.KeysAPI, args *restoreArgs) (any, error) {
				data, err := decodeBackup(args.Backup)
				if err != nil {
					return nil, err
				}
				key, err := api.RestoreKeyBackup(ctx, data)
				if err != nil {
					return nil, err
				}
				return describe(key)
			}),
		},
	})
}
