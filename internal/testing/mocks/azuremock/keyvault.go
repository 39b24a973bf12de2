package azuremock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/google/uuid"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
)

// Vaults keeps vaults in memory. Deleted vaults stay recoverable until
// purged.
type Vaults struct {
	*Memory[armkeyvault.Vault]

	mu      sync.Mutex
	Deleted map[string]*armkeyvault.DeletedVault
}

func NewVaults(sub string) *Vaults {
	return &Vaults{
		Memory:  NewMemory[armkeyvault.Vault](sub, "Microsoft.KeyVault/vaults"),
		Deleted: map[string]*armkeyvault.DeletedVault{},
	}
}

func (v *Vaults) CreateOrUpdate(ctx context.Context, ref azure.Ref, params armkeyvault.VaultCreateOrUpdateParameters) (*armkeyvault.Vault, error) {
	props := params.Properties
	if props == nil {
		props = &armkeyvault.VaultProperties{}
	}
	if props.VaultURI == nil {
		props.VaultURI = to.Ptr(fmt.Sprintf("https://%s.vault.azure.net/", ref.Name))
	}
	return v.Memory.CreateOrUpdate(ctx, ref, armkeyvault.Vault{
		Location:   params.Location,
		Tags:       params.Tags,
		Properties: props,
	})
}

func (v *Vaults) Delete(ctx context.Context, ref azure.Ref) error {
	vault, err := v.Memory.Get(ctx, ref)
	if err != nil {
		return err
	}
	if err := v.Memory.Delete(ctx, ref); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Deleted[strings.ToLower(ref.Name)] = &armkeyvault.DeletedVault{
		Name: to.Ptr(ref.Name),
		Properties: &armkeyvault.DeletedVaultProperties{
			Location:     vault.Location,
			VaultID:      vault.ID,
			DeletionDate: to.Ptr(time.Now().UTC()),
		},
	}
	return nil
}

func (v *Vaults) CheckNameAvailability(ctx context.Context, name string) (*armkeyvault.CheckNameAvailabilityResult, error) {
	vaults, err := v.Memory.List(ctx, azure.Ref{})
	if err != nil {
		return nil, err
	}
	for _, vault := range vaults {
		if vault.Name != nil && strings.EqualFold(*vault.Name, name) {
			return &armkeyvault.CheckNameAvailabilityResult{
				NameAvailable: to.Ptr(false),
				Reason:        to.Ptr(armkeyvault.ReasonAlreadyExists),
				Message:       to.Ptr(fmt.Sprintf("The vault name '%s' is already in use.", name)),
			}, nil
		}
	}
	return &armkeyvault.CheckNameAvailabilityResult{NameAvailable: to.Ptr(true)}, nil
}

func (v *Vaults) GetDeleted(ctx context.Context, name, location string) (*armkeyvault.DeletedVault, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if deleted, ok := v.Deleted[strings.ToLower(name)]; ok {
		return deleted, nil
	}
	return nil, fmt.Errorf("deleted vault %s: %w", name, azure.ErrNotFound)
}

func (v *Vaults) ListDeleted(ctx context.Context) ([]*armkeyvault.DeletedVault, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var result []*armkeyvault.DeletedVault
	for _, k := range common.SortedKeys(v.Deleted) {
		result = append(result, v.Deleted[k])
	}
	return result, nil
}

func (v *Vaults) PurgeDeleted(ctx context.Context, name, location string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.Deleted[strings.ToLower(name)]; !ok {
		return fmt.Errorf("deleted vault %s: %w", name, azure.ErrNotFound)
	}
	delete(v.Deleted, strings.ToLower(name))
	v.Memory.mu.Lock()
	v.Memory.Calls.Deletes++
	v.Memory.mu.Unlock()
	return nil
}

func (v *Vaults) UpdateAccessPolicy(
	ctx context.Context,
	ref azure.Ref,
	kind armkeyvault.AccessPolicyUpdateKind,
	policies []*armkeyvault.AccessPolicyEntry,
) (*armkeyvault.VaultAccessPolicyParameters, error) {
	vault, err := v.Memory.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if vault.Properties == nil {
		vault.Properties = &armkeyvault.VaultProperties{}
	}

	current := vault.Properties.AccessPolicies
	switch kind {
	case armkeyvault.AccessPolicyUpdateKindReplace:
		current = policies
	case armkeyvault.AccessPolicyUpdateKindAdd:
		current = append(current, policies...)
	case armkeyvault.AccessPolicyUpdateKindRemove:
		remove := map[string]bool{}
		for _, p := range policies {
			if p.ObjectID != nil {
				remove[strings.ToLower(*p.ObjectID)] = true
			}
		}
		var kept []*armkeyvault.AccessPolicyEntry
		for _, p := range current {
			if p.ObjectID == nil || !remove[strings.ToLower(*p.ObjectID)] {
				kept = append(kept, p)
			}
		}
		current = kept
	default:
		return nil, fmt.Errorf("unknown access policy update kind %q", kind)
	}
	vault.Properties.AccessPolicies = current

	if _, err := v.Memory.CreateOrUpdate(ctx, ref, *vault); err != nil {
		return nil, err
	}
	return &armkeyvault.VaultAccessPolicyParameters{
		ID:         vault.ID,
		Name:       to.Ptr(string(kind)),
		Location:   vault.Location,
		Properties: &armkeyvault.VaultAccessPolicyProperties{AccessPolicies: current},
	}, nil
}

// versioned keeps every version of a named item, oldest first, plus the
// soft deleted ones.
type versioned[T any] struct {
	mu        sync.Mutex
	vaultURL  string
	kind      string
	live      map[string][]*T
	deleted   map[string][]*T
	deletedAt map[string]time.Time

	Calls Counters
	// Err, when set, is returned by every call.
	Err error
}

func newVersioned[T any](vaultURL, kind string) versioned[T] {
	return versioned[T]{
		vaultURL:  strings.TrimSuffix(vaultURL, "/"),
		kind:      kind,
		live:      map[string][]*T{},
		deleted:   map[string][]*T{},
		deletedAt: map[string]time.Time{},
	}
}

func (s *versioned[T]) newID(name string) string {
	version := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s/%s/%s/%s", s.vaultURL, s.kind, name, version)
}

func (s *versioned[T]) recoveryID(name string) string {
	return fmt.Sprintf("%s/deleted%s/%s", s.vaultURL, s.kind, name)
}

func (s *versioned[T]) notFound(name string) error {
	return fmt.Errorf("%s %s: %w", strings.TrimSuffix(s.kind, "s"), name, azure.ErrNotFound)
}

// Mutations counts calls that changed the vault.
func (s *versioned[T]) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls.Creates + s.Calls.Deletes
}

// Versions returns the number of live versions of name.
func (s *versioned[T]) Versions(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live[strings.ToLower(name)])
}

func (s *versioned[T]) add(name string, item *T) {
	k := strings.ToLower(name)
	s.live[k] = append(s.live[k], item)
}

// find returns the named version, or the latest one when version is empty.
func (s *versioned[T]) find(name, version string, id func(*T) string) (*T, error) {
	items := s.live[strings.ToLower(name)]
	if len(items) == 0 {
		return nil, s.notFound(name)
	}
	if len(version) == 0 {
		return items[len(items)-1], nil
	}
	for _, item := range items {
		if strings.HasSuffix(id(item), "/"+version) {
			return item, nil
		}
	}
	return nil, s.notFound(name + "/" + version)
}

func (s *versioned[T]) remove(name string) ([]*T, error) {
	k := strings.ToLower(name)
	items, ok := s.live[k]
	if !ok {
		return nil, s.notFound(name)
	}
	delete(s.live, k)
	s.deleted[k] = items
	s.deletedAt[k] = time.Now().UTC()
	return items, nil
}

func (s *versioned[T]) purge(name string) error {
	k := strings.ToLower(name)
	if _, ok := s.deleted[k]; !ok {
		return s.notFound(name)
	}
	delete(s.deleted, k)
	delete(s.deletedAt, k)
	return nil
}

func (s *versioned[T]) recover(name string) (*T, error) {
	k := strings.ToLower(name)
	items, ok := s.deleted[k]
	if !ok {
		return nil, s.notFound(name)
	}
	delete(s.deleted, k)
	delete(s.deletedAt, k)
	s.live[k] = items
	return items[len(items)-1], nil
}

type backup[T any] struct {
	Name     string `json:"name"`
	Versions []*T   `json:"versions"`
}

func (s *versioned[T]) backup(name string) ([]byte, error) {
	items, ok := s.live[strings.ToLower(name)]
	if !ok {
		return nil, s.notFound(name)
	}
	return json.Marshal(backup[T]{Name: name, Versions: items})
}

func (s *versioned[T]) restore(data []byte) (*T, error) {
	var b backup[T]
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("invalid backup blob: %w", err)
	}
	if len(b.Versions) == 0 {
		return nil, fmt.Errorf("backup blob has no versions")
	}
	k := strings.ToLower(b.Name)
	if _, ok := s.live[k]; ok {
		return nil, fmt.Errorf("%s %s already exists", s.kind, b.Name)
	}
	s.live[k] = b.Versions
	return b.Versions[len(b.Versions)-1], nil
}

func latest[T any](m map[string][]*T) []*T {
	var result []*T
	for _, k := range common.SortedKeys(m) {
		items := m[k]
		result = append(result, items[len(items)-1])
	}
	return result
}
