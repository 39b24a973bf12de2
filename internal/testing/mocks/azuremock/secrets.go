package azuremock

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// Secrets is an in-memory vault secret store.
type Secrets struct {
	versioned[azsecrets.Secret]
}

func NewSecrets(vaultURL string) *Secrets {
	return &Secrets{versioned: newVersioned[azsecrets.Secret](vaultURL, "secrets")}
}

func secretID(s *azsecrets.Secret) string {
	if s.ID == nil {
		return ""
	}
	return string(*s.ID)
}

func secretProperties(s *azsecrets.Secret) *azsecrets.SecretProperties {
	return &azsecrets.SecretProperties{
		Attributes:  s.Attributes,
		ContentType: s.ContentType,
		ID:          s.ID,
		Managed:     s.Managed,
		Tags:        s.Tags,
	}
}

func (s *Secrets) deletedSecret(name string, item *azsecrets.Secret) *azsecrets.DeletedSecret {
	return &azsecrets.DeletedSecret{
		Attributes:  item.Attributes,
		ContentType: item.ContentType,
		ID:          item.ID,
		Tags:        item.Tags,
		RecoveryID:  to.Ptr(s.recoveryID(name)),
		DeletedDate: to.Ptr(s.deletedAt[lower(name)]),
	}
}

// Seed stores a secret version directly, as if it had been set out of band.
func (s *Secrets) Seed(name, value string) *azsecrets.Secret {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(name, azsecrets.SetSecretParameters{Value: to.Ptr(value)})
}

func (s *Secrets) set(name string, params azsecrets.SetSecretParameters) *azsecrets.Secret {
	now := time.Now().UTC()
	attrs := &azsecrets.SecretAttributes{Enabled: to.Ptr(true)}
	if params.SecretAttributes != nil {
		copied := *params.SecretAttributes
		attrs = &copied
		if attrs.Enabled == nil {
			attrs.Enabled = to.Ptr(true)
		}
	}
	attrs.Created = to.Ptr(now)
	attrs.Updated = to.Ptr(now)

	secret := &azsecrets.Secret{
		Attributes:  attrs,
		ContentType: params.ContentType,
		ID:          to.Ptr(azsecrets.ID(s.newID(name))),
		Tags:        params.Tags,
		Value:       params.Value,
	}
	s.add(name, secret)
	return secret
}

func (s *Secrets) SetSecret(ctx context.Context, name string, params azsecrets.SetSecretParameters) (*azsecrets.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Creates++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.set(name, params), nil
}

func (s *Secrets) GetSecret(ctx context.Context, name, version string) (*azsecrets.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Gets++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.find(name, version, secretID)
}

func (s *Secrets) DeleteSecret(ctx context.Context, name string) (*azsecrets.DeletedSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Deletes++
	if s.Err != nil {
		return nil, s.Err
	}
	items, err := s.remove(name)
	if err != nil {
		return nil, err
	}
	return s.deletedSecret(name, items[len(items)-1]), nil
}

func (s *Secrets) GetDeletedSecret(ctx context.Context, name string) (*azsecrets.DeletedSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Gets++
	if s.Err != nil {
		return nil, s.Err
	}
	items, ok := s.deleted[lower(name)]
	if !ok {
		return nil, s.notFound(name)
	}
	return s.deletedSecret(name, items[len(items)-1]), nil
}

func (s *Secrets) PurgeDeletedSecret(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Deletes++
	if s.Err != nil {
		return s.Err
	}
	return s.purge(name)
}

func (s *Secrets) RecoverDeletedSecret(ctx context.Context, name string) (*azsecrets.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Creates++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.recover(name)
}

func (s *Secrets) ListSecretProperties(ctx context.Context) ([]*azsecrets.SecretProperties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Lists++
	if s.Err != nil {
		return nil, s.Err
	}
	var result []*azsecrets.SecretProperties
	for _, item := range latest(s.live) {
		result = append(result, secretProperties(item))
	}
	return result, nil
}

func (s *Secrets) ListSecretPropertiesVersions(ctx context.Context, name string) ([]*azsecrets.SecretProperties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Lists++
	if s.Err != nil {
		return nil, s.Err
	}
	items, ok := s.live[lower(name)]
	if !ok {
		return nil, s.notFound(name)
	}
	var result []*azsecrets.SecretProperties
	for _, item := range items {
		result = append(result, secretProperties(item))
	}
	return result, nil
}

func (s *Secrets) ListDeletedSecrets(ctx context.Context) ([]*azsecrets.DeletedSecretProperties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Lists++
	if s.Err != nil {
		return nil, s.Err
	}
	var result []*azsecrets.DeletedSecretProperties
	for _, k := range sortedNames(s.deleted) {
		items := s.deleted[k]
		item := items[len(items)-1]
		result = append(result, &azsecrets.DeletedSecretProperties{
			Attributes:  item.Attributes,
			ContentType: item.ContentType,
			ID:          item.ID,
			Tags:        item.Tags,
			RecoveryID:  to.Ptr(s.recoveryID(k)),
			DeletedDate: to.Ptr(s.deletedAt[k]),
		})
	}
	return result, nil
}

func (s *Secrets) BackupSecret(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Gets++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.backup(name)
}

func (s *Secrets) RestoreSecretBackup(ctx context.Context, data []byte) (*azsecrets.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Creates++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.restore(data)
}

func (s *Secrets) UpdateSecretProperties(ctx context.Context, name, version string, params azsecrets.UpdateSecretPropertiesParameters) (*azsecrets.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Creates++
	if s.Err != nil {
		return nil, s.Err
	}
	secret, err := s.find(name, version, secretID)
	if err != nil {
		return nil, err
	}
	if params.ContentType != nil {
		secret.ContentType = params.ContentType
	}
	if params.Tags != nil {
		secret.Tags = params.Tags
	}
	if params.SecretAttributes != nil {
		if secret.Attributes == nil {
			secret.Attributes = &azsecrets.SecretAttributes{}
		}
		if params.SecretAttributes.Enabled != nil {
			secret.Attributes.Enabled = params.SecretAttributes.Enabled
		}
		if params.SecretAttributes.Expires != nil {
			secret.Attributes.Expires = params.SecretAttributes.Expires
		}
		if params.SecretAttributes.NotBefore != nil {
			secret.Attributes.NotBefore = params.SecretAttributes.NotBefore
		}
		secret.Attributes.Updated = to.Ptr(time.Now().UTC())
	}
	return secret, nil
}
