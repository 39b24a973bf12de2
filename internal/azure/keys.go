package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
)

// KeysAPI is the keys data plane of one vault.
type KeysAPI interface {
	CreateKey(ctx context.Context, name string, params azkeys.CreateKeyParameters) (*azkeys.KeyBundle, error)
	// ImportKey stores externally created key material as a new version.
	ImportKey(ctx context.Context, name string, params azkeys.ImportKeyParameters) (*azkeys.KeyBundle, error)
	GetKey(ctx context.Context, name, version string) (*azkeys.KeyBundle, error)
	ListKeyProperties(ctx context.Context) ([]*azkeys.KeyProperties, error)
	ListKeyPropertiesVersions(ctx context.Context, name string) ([]*azkeys.KeyProperties, error)
	DeleteKey(ctx context.Context, name string) (*azkeys.DeletedKey, error)
	GetDeletedKey(ctx context.Context, name string) (*azkeys.DeletedKey, error)
	PurgeDeletedKey(ctx context.Context, name string) error
	RecoverDeletedKey(ctx context.Context, name string) (*azkeys.KeyBundle, error)
	ListDeletedKeys(ctx context.Context) ([]*azkeys.DeletedKeyProperties, error)
	UpdateKey(ctx context.Context, name, version string, params azkeys.UpdateKeyParameters) (*azkeys.KeyBundle, error)
	BackupKey(ctx context.Context, name string) ([]byte, error)
	RestoreKeyBackup(ctx context.Context, backup []byte) (*azkeys.KeyBundle, error)
}

type keys struct {
	client *azkeys.Client
}

func (c *armClients) Keys(vaultURL string) (KeysAPI, error) {
	if len(vaultURL) == 0 {
		return nil, fmt.Errorf("vault_url is required")
	}
	client, err := azkeys.NewClient(vaultURL, c.token(), &azkeys.ClientOptions{
		ClientOptions: c.coreOptions(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create keys client: %w", err)
	}
	return &keys{client: client}, nil
}

func (k *keys) CreateKey(ctx context.Context, name string, params azkeys.CreateKeyParameters) (*azkeys.KeyBundle, error) {
	resp, err := k.client.CreateKey(ctx, name, params, nil)
	if err != nil {
		return nil, err
	}
	return &resp.KeyBundle, nil
}

func (k *keys) ImportKey(ctx context.Context, name string, params azkeys.ImportKeyParameters) (*azkeys.KeyBundle, error) {
	resp, err := k.client.ImportKey(ctx, name, params, nil)
	if err != nil {
		return nil, err
	}
	return &resp.KeyBundle, nil
}

func (k *keys) GetKey(ctx context.Context, name, version string) (*azkeys.KeyBundle, error) {
	resp, err := k.client.GetKey(ctx, name, version, nil)
	if err != nil {
		return nil, err
	}
	return &resp.KeyBundle, nil
}

func (k *keys) ListKeyProperties(ctx context.Context) ([]*azkeys.KeyProperties, error) {
	pager := k.client.NewListKeyPropertiesPager(nil)
	return collect(ctx, pager, func(page azkeys.ListKeyPropertiesResponse) []*azkeys.KeyProperties {
		return page.Value
	})
}

func (k *keys) ListKeyPropertiesVersions(ctx context.Context, name string) ([]*azkeys.KeyProperties, error) {
	pager := k.client.NewListKeyPropertiesVersionsPager(name, nil)
	return collect(ctx, pager, func(page azkeys.ListKeyPropertiesVersionsResponse) []*azkeys.KeyProperties {
		return page.Value
	})
}

func (k *keys) DeleteKey(ctx context.Context, name string) (*azkeys.DeletedKey, error) {
	resp, err := k.client.DeleteKey(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeletedKey, nil
}

func (k *keys) GetDeletedKey(ctx context.Context, name string) (*azkeys.DeletedKey, error) {
	resp, err := k.client.GetDeletedKey(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeletedKey, nil
}

func (k *keys) PurgeDeletedKey(ctx context.Context, name string) error {
	_, err := k.client.PurgeDeletedKey(ctx, name, nil)
	return err
}

func (k *keys) RecoverDeletedKey(ctx context.Context, name string) (*azkeys.KeyBundle, error) {
	resp, err := k.client.RecoverDeletedKey(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.KeyBundle, nil
}

func (k *keys) ListDeletedKeys(ctx context.Context) ([]*azkeys.DeletedKeyProperties, error) {
	pager := k.client.NewListDeletedKeyPropertiesPager(nil)
	return collect(ctx, pager, func(page azkeys.ListDeletedKeyPropertiesResponse) []*azkeys.DeletedKeyProperties {
		return page.Value
	})
}

func (k *keys) UpdateKey(ctx context.Context, name, version string, params azkeys.UpdateKeyParameters) (*azkeys.KeyBundle, error) {
	resp, err := k.client.UpdateKey(ctx, name, version, params, nil)
	if err != nil {
		return nil, err
	}
	return &resp.KeyBundle, nil
}

func (k *keys) BackupKey(ctx context.Context, name string) ([]byte, error) {
	resp, err := k.client.BackupKey(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (k *keys) RestoreKeyBackup(ctx context.Context, backup []byte) (*azkeys.KeyBundle, error) {
	resp, err := k.client.RestoreKey(ctx, azkeys.RestoreKeyParameters{KeyBackup: backup}, nil)
	if err != nil {
		return nil, err
	}
	return &resp.KeyBundle, nil
}
