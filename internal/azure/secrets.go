package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// SecretsAPI is the secrets data plane of one vault.
type SecretsAPI interface {
	SetSecret(ctx context.Context, name string, params azsecrets.SetSecretParameters) (*azsecrets.Secret, error)
	// GetSecret fetches a version of a secret, the latest when version is empty.
	GetSecret(ctx context.Context, name, version string) (*azsecrets.Secret, error)
	DeleteSecret(ctx context.Context, name string) (*azsecrets.DeletedSecret, error)
	GetDeletedSecret(ctx context.Context, name string) (*azsecrets.DeletedSecret, error)
	PurgeDeletedSecret(ctx context.Context, name string) error
	RecoverDeletedSecret(ctx context.Context, name string) (*azsecrets.Secret, error)
	ListSecretProperties(ctx context.Context) ([]*azsecrets.SecretProperties, error)
	ListSecretPropertiesVersions(ctx context.Context, name string) ([]*azsecrets.SecretProperties, error)
	ListDeletedSecrets(ctx context.Context) ([]*azsecrets.DeletedSecretProperties, error)
	BackupSecret(ctx context.Context, name string) ([]byte, error)
	RestoreSecretBackup(ctx context.Context, backup []byte) (*azsecrets.Secret, error)
	UpdateSecretProperties(ctx context.Context, name, version string, params azsecrets.UpdateSecretPropertiesParameters) (*azsecrets.Secret, error)
}

type secrets struct {
	client *azsecrets.Client
}

func (c *armClients) Secrets(vaultURL string) (SecretsAPI, error) {
	if len(vaultURL) == 0 {
		return nil, fmt.Errorf("vault_url is required")
	}
	client, err := azsecrets.NewClient(vaultURL, c.token(), &azsecrets.ClientOptions{
		ClientOptions: c.coreOptions(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets client: %w", err)
	}
	return &secrets{client: client}, nil
}

func (s *secrets) SetSecret(ctx context.Context, name string, params azsecrets.SetSecretParameters) (*azsecrets.Secret, error) {
	resp, err := s.client.SetSecret(ctx, name, params, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Secret, nil
}

func (s *secrets) GetSecret(ctx context.Context, name, version string) (*azsecrets.Secret, error) {
	resp, err := s.client.GetSecret(ctx, name, version, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Secret, nil
}

func (s *secrets) DeleteSecret(ctx context.Context, name string) (*azsecrets.DeletedSecret, error) {
	resp, err := s.client.DeleteSecret(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeletedSecret, nil
}

func (s *secrets) GetDeletedSecret(ctx context.Context, name string) (*azsecrets.DeletedSecret, error) {
	resp, err := s.client.GetDeletedSecret(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeletedSecret, nil
}

func (s *secrets) PurgeDeletedSecret(ctx context.Context, name string) error {
	_, err := s.client.PurgeDeletedSecret(ctx, name, nil)
	return err
}

func (s *secrets) RecoverDeletedSecret(ctx context.Context, name string) (*azsecrets.Secret, error) {
	resp, err := s.client.RecoverDeletedSecret(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Secret, nil
}

func (s *secrets) ListSecretProperties(ctx context.Context) ([]*azsecrets.SecretProperties, error) {
	pager := s.client.NewListSecretPropertiesPager(nil)
	return collect(ctx, pager, func(page azsecrets.ListSecretPropertiesResponse) []*azsecrets.SecretProperties {
		return page.Value
	})
}

func (s *secrets) ListSecretPropertiesVersions(ctx context.Context, name string) ([]*azsecrets.SecretProperties, error) {
	pager := s.client.NewListSecretPropertiesVersionsPager(name, nil)
	return collect(ctx, pager, func(page azsecrets.ListSecretPropertiesVersionsResponse) []*azsecrets.SecretProperties {
		return page.Value
	})
}

func (s *secrets) ListDeletedSecrets(ctx context.Context) ([]*azsecrets.DeletedSecretProperties, error) {
	pager := s.client.NewListDeletedSecretPropertiesPager(nil)
	return collect(ctx, pager, func(page azsecrets.ListDeletedSecretPropertiesResponse) []*azsecrets.DeletedSecretProperties {
		return page.Value
	})
}

func (s *secrets) BackupSecret(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.BackupSecret(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (s *secrets) RestoreSecretBackup(ctx context.Context, backup []byte) (*azsecrets.Secret, error) {
	resp, err := s.client.RestoreSecret(ctx, azsecrets.RestoreSecretParameters{SecretBackup: backup}, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Secret, nil
}

func (s *secrets) UpdateSecretProperties(ctx context.Context, name, version string, params azsecrets.UpdateSecretPropertiesParameters) (*azsecrets.Secret, error) {
	resp, err := s.client.UpdateSecretProperties(ctx, name, version, params, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Secret, nil
}
