package modules

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
)

const secretModule = "azurerm_keyvault_secret"

// DeletePollInterval is how often a waiting delete checks the vault.
var DeletePollInterval = 2 * time.Second

// DeleteTimeout bounds how long a waiting delete polls.
var DeleteTimeout = 5 * time.Minute

// vaultItem splits a Key Vault object ID into its name and version.
// IDs look like https://<vault>.vault.azure.net/secrets/<name>/<version>.
func vaultItem(id string) (name, version string) {
	parsed, err := url.Parse(id)
	if err != nil {
		return common.LastSegment(id), ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) > 1 {
		name = parts[1]
	}
	if len(parts) > 2 {
		version = parts[2]
	}
	return name, version
}

// keyedByVaultID returns Key Vault objects keyed by the name, or the
// version when byVersion is set, taken from their id. Keys carry their
// identifier as kid.
func keyedByVaultID[T any](items []*T, byVersion bool) (map[string]any, error) {
	maps, err := common.ConvertSliceToMaps(items)
	if err != nil {
		return nil, fmt.Errorf("The object model could not be parsed. (%v)", err)
	}
	result := make(map[string]any, len(maps))
	for _, m := range maps {
		id, _ := m["id"].(string)
		if len(id) == 0 {
			id, _ = m["kid"].(string)
		}
		name, version := vaultItem(id)
		if byVersion {
			name = version
		}
		result[name] = m
	}
	return result, nil
}

// VaultObjectArgs is shared by every secret and key function.
type VaultObjectArgs struct {
	Name     string `mapstructure:"name" validate:"required"`
	VaultURL string `mapstructure:"vault_url" validate:"required,url"`
	Version  string `mapstructure:"version"`
}

// AttributeArgs are the enabled and validity window attributes shared by
// secrets and keys.
type AttributeArgs struct {
	Enabled   *bool             `mapstructure:"enabled"`
	ExpiresOn *time.Time        `mapstructure:"expires_on"`
	NotBefore *time.Time        `mapstructure:"not_before"`
	Tags      map[string]string `mapstructure:"tags"`
}

func (a AttributeArgs) hasAttributes() bool {
	return a.Enabled != nil || a.ExpiresOn != nil || a.NotBefore != nil
}

func (a AttributeArgs) tags() map[string]*string {
	if a.Tags == nil {
		return nil
	}
	tags := make(map[string]*string, len(a.Tags))
	for k, v := range a.Tags {
		tags[k] = to.Ptr(v)
	}
	return tags
}

type secretArgs struct {
	VaultObjectArgs `mapstructure:",squash"`
	AttributeArgs   `mapstructure:",squash"`
	Value           string `mapstructure:"value"`
	ContentType     string `mapstructure:"content_type"`
}

func (a *secretArgs) attributes() *azsecrets.SecretAttributes {
	if !a.hasAttributes() {
		return nil
	}
	return &azsecrets.SecretAttributes{
		Enabled:   a.Enabled,
		Expires:   a.ExpiresOn,
		NotBefore: a.NotBefore,
	}
}

func (a *secretArgs) contentType() *string {
	if len(a.ContentType) == 0 {
		return nil
	}
	return to.Ptr(a.ContentType)
}

type deleteSecretArgs struct {
	VaultObjectArgs `mapstructure:",squash"`
	Wait            bool `mapstructure:"wait"`
}

type vaultArgs struct {
	VaultURL string `mapstructure:"vault_url" validate:"required,url"`
}

type restoreArgs struct {
	VaultURL string `mapstructure:"vault_url" validate:"required,url"`
	Backup   string `mapstructure:"backup" validate:"required"`
}

func (e *Env) secrets(ctx context.Context, req *loader.Request, vaultURL string) (azure.SecretsAPI, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	return clients.Secrets(vaultURL)
}

// secretFunc decodes args into T and hands the vault's secrets client to fn.
func secretFunc[T any](e *Env, vaultURL func(*T) string, fn func(ctx context.Context, api azure.SecretsAPI, args *T) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		args := new(T)
		if err := loader.Decode(req.Function, req.Args, args); err != nil {
			return nil, err
		}
		api, err := e.secrets(ctx, req, vaultURL(args))
		if err != nil {
			return nil, err
		}
		return fn(ctx, api, args)
	}
}

func objectVault(a *VaultObjectArgs) string  { return a.VaultURL }
func secretVault(a *secretArgs) string       { return a.VaultURL }
func deleteVault(a *deleteSecretArgs) string { return a.VaultURL }
func plainVault(a *vaultArgs) string         { return a.VaultURL }
func restoreVault(a *restoreArgs) string     { return a.VaultURL }

// waitForDeletion polls until a deleted object shows up in the vault's
// deleted list.
func waitForDeletion(ctx context.Context, lookup func(ctx context.Context) error) error {
	return azure.Poll(ctx, DeletePollInterval, DeleteTimeout, func(ctx context.Context) (azure.PollStatus, error) {
		err := lookup(ctx)
		switch {
		case err == nil:
			return azure.PollDone, nil
		case azure.IsNotFound(err):
			return azure.PollContinue, nil
		default:
			return azure.PollContinue, err
		}
	})
}

func decodeBackup(backup string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(backup)
	if err != nil {
		return nil, fmt.Errorf("backup is not valid base64: %w", err)
	}
	return data, nil
}

func (e *Env) registerSecrets(reg *loader.Registry) {
	identity := []string{"name", "vault_url"}
	vault := []string{"vault_url"}

	register(reg, secretModule, "keyvault", []function{
		{
			name: "set_secret", params: []string{"name", "value", "vault_url"},
			required: []string{"name", "value", "vault_url"},
			doc:      "Set a secret value, creating a new version when the secret exists.",
			fn: secretFunc(e, secretVault, func(ctx context.Context, api azure.SecretsAPI, args *secretArgs) (any, error) {
				secret, err := api.SetSecret(ctx, args.Name, azsecrets.SetSecretParameters{
					Value:            to.Ptr(args.Value),
					ContentType:      args.contentType(),
					SecretAttributes: args.attributes(),
					Tags:             args.tags(),
				})
				if err != nil {
					return nil, err
				}
				return describe(secret)
			}),
		},
		{
			name: "get_secret", params: []string{"name", "vault_url", "version"}, required: identity,
			doc: "Get a secret, the latest version unless version is given.",
			fn: secretFunc(e, objectVault, func(ctx context.Context, api azure.SecretsAPI, args *VaultObjectArgs) (any, error) {
				secret, err := api.GetSecret(ctx, args.Name, args.Version)
				if err != nil {
					return nil, err
				}
				return describe(secret)
			}),
		},
		{
			name: "delete_secret", params: []string{"name", "vault_url", "wait"}, required: identity,
			doc: "Delete a secret. With wait, block until the deletion is complete.",
			fn: secretFunc(e, deleteVault, func(ctx context.Context, api azure.SecretsAPI, args *deleteSecretArgs) (any, error) {
				deleted, err := api.DeleteSecret(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				if args.Wait {
					err := waitForDeletion(ctx, func(ctx context.Context) error {
						_, err := api.GetDeletedSecret(ctx, args.Name)
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
			name: "get_deleted_secret", params: identity, required: identity,
			doc: "Get a deleted secret.",
			fn: secretFunc(e, objectVault, func(ctx context.Context, api azure.SecretsAPI, args *VaultObjectArgs) (any, error) {
				deleted, err := api.GetDeletedSecret(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return describe(deleted)
			}),
		},
		{
			name: "purge_deleted_secret", params: identity, required: identity,
			doc: "Permanently delete a deleted secret.",
			fn: secretFunc(e, objectVault, func(ctx context.Context, api azure.SecretsAPI, args *VaultObjectArgs) (any, error) {
				if err := api.PurgeDeletedSecret(ctx, args.Name); err != nil {
					return nil, err
				}
				return true, nil
			}),
		},
		{
			name: "recover_deleted_secret", params: identity, required: identity,
			doc: "Recover a deleted secret to its latest version.",
			fn: secretFunc(e, objectVault, func(ctx context.Context, api azure.SecretsAPI, args *VaultObjectArgs) (any, error) {
				secret, err := api.RecoverDeletedSecret(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return describe(secret)
			}),
		},
		{
			name: "list_properties_of_secrets", params: vault, required: vault,
			doc: "List the properties of every secret in a vault. Values are not returned.",
			fn: secretFunc(e, plainVault, func(ctx context.Context, api azure.SecretsAPI, args *vaultArgs) (any, error) {
				items, err := api.ListSecretProperties(ctx)
				if err != nil {
					return nil, err
				}
				return keyedByVaultID(items, false)
			}),
		},
		{
			name: "list_properties_of_secret_versions", params: identity, required: identity,
			doc: "List the properties of every version of a secret, keyed by version.",
			fn: secretFunc(e, objectVault, func(ctx context.Context, api azure.SecretsAPI, args *VaultObjectArgs) (any, error) {
				items, err := api.ListSecretPropertiesVersions(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return keyedByVaultID(items, true)
			}),
		},
		{
			name: "list_deleted_secrets", params: vault, required: vault,
			doc: "List deleted secrets in a vault.",
			fn: secretFunc(e, plainVault, func(ctx context.Context, api azure.SecretsAPI, args *vaultArgs) (any, error) {
				items, err := api.ListDeletedSecrets(ctx)
				if err != nil {
					return nil, err
				}
				return keyedByVaultID(items, false)
			}),
		},
		{
			name: "backup_secret", params: identity, required: identity,
			doc: "Back up every version of a secret. The backup is returned base64 encoded.",
			fn: secretFunc(e, objectVault, func(ctx context.Context, api azure.SecretsAPI, args *VaultObjectArgs) (any, error) {
				data, err := api.BackupSecret(ctx, args.Name)
				if err != nil {
					return nil, err
				}
				return base64.StdEncoding.EncodeToString(data), nil
			}),
		},
		{
			name: "restore_secret_backup", params: []string{"backup", "vault_url"},
			required: []string{"backup", "vault_url"},
			doc:      "Restore a secret from a base64 encoded backup.",
			fn: secretFunc(e, restoreVault, func(ctx context.Context, api azure.SecretsAPI, args *restoreArgs) (any, error) {
				data, err := decodeBackup(args.Backup)
				if err != nil {
					return nil, err
				}
				secret, err := api.RestoreSecretBackup(ctx, data)
				if err != nil {
					return nil, err
				}
				return describe(secret)
			}),
		},
		{
			name: "update_secret_properties", params: []string{"name", "vault_url", "version"}, required: identity,
			doc: "Update the content type, attributes or tags of a secret version.",
			fn: secretFunc(e, secretVault, func(ctx context.Context, api azure.SecretsAPI, args *secretArgs) (any, error) {
				secret, err := api.UpdateSecretProperties(ctx, args.Name, args.Version, azsecrets.UpdateSecretPropertiesParameters{
					ContentType:      args.contentType(),
					SecretAttributes: args.attributes(),
					Tags:             args.tags(),
				})
				if err != nil {
					return nil, err
				}
				return describe(secret)
			}),
		},
	})
}
