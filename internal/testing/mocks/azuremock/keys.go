package azuremock

import (
	"context"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"

	"github.com/thand-io/azurerm/internal/common"
)

// Keys is an in-memory vault key store. Key material is zero filled.
type Keys struct {
	versioned[azkeys.KeyBundle]
}

func NewKeys(vaultURL string) *Keys {
	return &Keys{versioned: newVersioned[azkeys.KeyBundle](vaultURL, "keys")}
}

func lower(name string) string { return strings.ToLower(name) }

func sortedNames[T any](m map[string][]*T) []string { return common.SortedKeys(m) }

func keyID(k *azkeys.KeyBundle) string {
	if k.Key == nil || k.Key.KID == nil {
		return ""
	}
	return string(*k.Key.KID)
}

func keyProperties(k *azkeys.KeyBundle) *azkeys.KeyProperties {
	props := &azkeys.KeyProperties{
		Attributes: k.Attributes,
		Managed:    k.Managed,
		Tags:       k.Tags,
	}
	if k.Key != nil {
		props.KID = k.Key.KID
	}
	return props
}

func (k *Keys) deletedKey(name string, item *azkeys.KeyBundle) *azkeys.DeletedKey {
	return &azkeys.DeletedKey{
		Attributes:  item.Attributes,
		Key:         item.Key,
		Tags:        item.Tags,
		RecoveryID:  to.Ptr(k.recoveryID(name)),
		DeletedDate: to.Ptr(k.deletedAt[lower(name)]),
	}
}

func keyMaterial(params azkeys.CreateKeyParameters) *azkeys.JSONWebKey {
	jwk := &azkeys.JSONWebKey{Kty: params.Kty, KeyOps: params.KeyOps}
	kty := azkeys.KeyTypeRSA
	if params.Kty != nil {
		kty = *params.Kty
	}
	switch kty {
	case azkeys.KeyTypeEC, azkeys.KeyTypeECHSM:
		curve := azkeys.CurveNameP256
		if params.Curve != nil {
			curve = *params.Curve
		}
		jwk.Crv = to.Ptr(curve)
		jwk.X = make([]byte, 32)
		jwk.Y = make([]byte, 32)
	case azkeys.KeyTypeOct, azkeys.KeyTypeOctHSM:
		size := int32(256)
		if params.KeySize != nil {
			size = *params.KeySize
		}
		jwk.K = make([]byte, size/8)
	default:
		size := int32(2048)
		if params.KeySize != nil {
			size = *params.KeySize
		}
		jwk.N = make([]byte, size/8)
		jwk.E = []byte{1, 0, 1}
	}
	return jwk
}

// Seed stores a key version directly, as if it had been created out of band.
func (k *Keys) Seed(name string, params azkeys.CreateKeyParameters) *azkeys.KeyBundle {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.create(name, params)
}

// keyAttributes stamps requested attributes the way the service does.
func keyAttributes(requested *azkeys.KeyAttributes) *azkeys.KeyAttributes {
	now := time.Now().UTC()
	attrs := &azkeys.KeyAttributes{Enabled: to.Ptr(true)}
	if requested != nil {
		copied := *requested
		attrs = &copied
		if attrs.Enabled == nil {
			attrs.Enabled = to.Ptr(true)
		}
	}
	attrs.Created = to.Ptr(now)
	attrs.Updated = to.Ptr(now)
	return attrs
}

func (k *Keys) create(name string, params azkeys.CreateKeyParameters) *azkeys.KeyBundle {
	jwk := keyMaterial(params)
	jwk.KID = to.Ptr(azkeys.ID(k.newID(name)))
	bundle := &azkeys.KeyBundle{
		Attributes: keyAttributes(params.KeyAttributes),
		Key:        jwk,
		Tags:       params.Tags,
	}
	k.add(name, bundle)
	return bundle
}

func (k *Keys) ImportKey(ctx context.Context, name string, params azkeys.ImportKeyParameters) (*azkeys.KeyBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Creates++
	if k.Err != nil {
		return nil, k.Err
	}
	jwk := &azkeys.JSONWebKey{}
	if params.Key != nil {
		copied := *params.Key
		jwk = &copied
	}
	if params.HSM != nil && *params.HSM && jwk.Kty != nil && !strings.HasSuffix(string(*jwk.Kty), "-HSM") {
		jwk.Kty = to.Ptr(azkeys.KeyType(string(*jwk.Kty) + "-HSM"))
	}
	jwk.KID = to.Ptr(azkeys.ID(k.newID(name)))
	bundle := &azkeys.KeyBundle{
		Attributes: keyAttributes(params.KeyAttributes),
		Key:        jwk,
		Tags:       params.Tags,
	}
	k.add(name, bundle)
	return bundle, nil
}

func (k *Keys) CreateKey(ctx context.Context, name string, params azkeys.CreateKeyParameters) (*azkeys.KeyBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Creates++
	if k.Err != nil {
		return nil, k.Err
	}
	return k.create(name, params), nil
}

func (k *Keys) GetKey(ctx context.Context, name, version string) (*azkeys.KeyBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Gets++
	if k.Err != nil {
		return nil, k.Err
	}
	return k.find(name, version, keyID)
}

func (k *Keys) ListKeyProperties(ctx context.Context) ([]*azkeys.KeyProperties, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Lists++
	if k.Err != nil {
		return nil, k.Err
	}
	var result []*azkeys.KeyProperties
	for _, item := range latest(k.live) {
		result = append(result, keyProperties(item))
	}
	return result, nil
}

func (k *Keys) ListKeyPropertiesVersions(ctx context.Context, name string) ([]*azkeys.KeyProperties, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Lists++
	if k.Err != nil {
		return nil, k.Err
	}
	items, ok := k.live[lower(name)]
	if !ok {
		return nil, k.notFound(name)
	}
	var result []*azkeys.KeyProperties
	for _, item := range items {
		result = append(result, keyProperties(item))
	}
	return result, nil
}

func (k *Keys) DeleteKey(ctx context.Context, name string) (*azkeys.DeletedKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Deletes++
	if k.Err != nil {
		return nil, k.Err
	}
	items, err := k.remove(name)
	if err != nil {
		return nil, err
	}
	return k.deletedKey(name, items[len(items)-1]), nil
}

func (k *Keys) GetDeletedKey(ctx context.Context, name string) (*azkeys.DeletedKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Gets++
	if k.Err != nil {
		return nil, k.Err
	}
	items, ok := k.deleted[lower(name)]
	if !ok {
		return nil, k.notFound(name)
	}
	return k.deletedKey(name, items[len(items)-1]), nil
}

func (k *Keys) PurgeDeletedKey(ctx context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Deletes++
	if k.Err != nil {
		return k.Err
	}
	return k.purge(name)
}

func (k *Keys) RecoverDeletedKey(ctx context.Context, name string) (*azkeys.KeyBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Creates++
	if k.Err != nil {
		return nil, k.Err
	}
	return k.recover(name)
}

func (k *Keys) ListDeletedKeys(ctx context.Context) ([]*azkeys.DeletedKeyProperties, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Lists++
	if k.Err != nil {
		return nil, k.Err
	}
	var result []*azkeys.DeletedKeyProperties
	for _, name := range sortedNames(k.deleted) {
		items := k.deleted[name]
		item := items[len(items)-1]
		props := &azkeys.DeletedKeyProperties{
			Attributes:  item.Attributes,
			Tags:        item.Tags,
			RecoveryID:  to.Ptr(k.recoveryID(name)),
			DeletedDate: to.Ptr(k.deletedAt[name]),
		}
		if item.Key != nil {
			props.KID = item.Key.KID
		}
		result = append(result, props)
	}
	return result, nil
}

func (k *Keys) UpdateKey(ctx context.Context, name, version string, params azkeys.UpdateKeyParameters) (*azkeys.KeyBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Creates++
	if k.Err != nil {
		return nil, k.Err
	}
	bundle, err := k.find(name, version, keyID)
	if err != nil {
		return nil, err
	}
	if params.Tags != nil {
		bundle.Tags = params.Tags
	}
	if params.KeyOps != nil && bundle.Key != nil {
		bundle.Key.KeyOps = params.KeyOps
	}
	if params.KeyAttributes != nil {
		if bundle.Attributes == nil {
			bundle.Attributes = &azkeys.KeyAttributes{}
		}
		if params.KeyAttributes.Enabled != nil {
			bundle.Attributes.Enabled = params.KeyAttributes.Enabled
		}
		if params.KeyAttributes.Expires != nil {
			bundle.Attributes.Expires = params.KeyAttributes.Expires
		}
		if params.KeyAttributes.NotBefore != nil {
			bundle.Attributes.NotBefore = params.KeyAttributes.NotBefore
		}
		bundle.Attributes.Updated = to.Ptr(time.Now().UTC())
	}
	return bundle, nil
}

func (k *Keys) BackupKey(ctx context.Context, name string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Gets++
	if k.Err != nil {
		return nil, k.Err
	}
	return k.backup(name)
}

func (k *Keys) RestoreKeyBackup(ctx context.Context, data []byte) (*azkeys.KeyBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls.Creates++
	if k.Err != nil {
		return nil, k.Err
	}
	return k.restore(data)
}
