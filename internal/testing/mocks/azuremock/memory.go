package azuremock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
)

// Counters tracks calls against an in-memory resource store.
type Counters struct {
	Gets    int
	Lists   int
	Creates int
	Deletes int
}

// Memory is an in-memory azure.Operations. Stored models are stamped with
// their name and ARM ID the way the service would.
type Memory[T any] struct {
	mu           sync.Mutex
	items        map[string]*T
	refs         map[string]azure.Ref
	subscription string
	resourceType string

	Calls Counters
	// Err, when set, is returned by every call.
	Err error
	// OnGet, when set, may rewrite a model before Get returns it.
	OnGet func(ref azure.Ref, item *T)
	// IDFunc, when set, builds the ARM ID for resources that do not live
	// directly under a resource group provider path.
	IDFunc func(ref azure.Ref) string
}

// NewMemory returns a store for resources of the given provider type, e.g.
// "Microsoft.Compute/availabilitySets".
func NewMemory[T any](subscription, resourceType string) *Memory[T] {
	return &Memory[T]{
		items:        make(map[string]*T),
		refs:         make(map[string]azure.Ref),
		subscription: subscription,
		resourceType: resourceType,
	}
}

func key(ref azure.Ref) string {
	return strings.ToLower(strings.Join([]string{ref.ResourceGroup, ref.Parent, ref.Type, ref.Name}, "/"))
}

// ID is the ARM ID a resource at ref gets.
func (m *Memory[T]) ID(ref azure.Ref) string {
	if m.IDFunc != nil {
		return m.IDFunc(ref)
	}
	if len(ref.ResourceGroup) == 0 {
		return fmt.Sprintf("/subscriptions/%s/providers/%s/%s", m.subscription, m.resourceType, ref.Name)
	}
	return azure.ResourceID(m.subscription, ref.ResourceGroup, m.resourceType+"/"+ref.Name)
}

// Put stores a model directly, as if it had been created out of band.
func (m *Memory[T]) Put(ref azure.Ref, model T) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(ref, model)
}

func (m *Memory[T]) put(ref azure.Ref, model T) *T {
	stamped := m.stamp(ref, model)
	m.items[key(ref)] = stamped
	m.refs[key(ref)] = ref
	return clone(stamped)
}

func (m *Memory[T]) stamp(ref azure.Ref, model T) *T {
	data, err := common.ConvertInterfaceToMap(model)
	if err != nil || data == nil {
		data = map[string]any{}
	}
	data["name"] = ref.Name
	data["id"] = m.ID(ref)

	var out T
	if err := common.ConvertMapToInterface(data, &out); err != nil {
		return &model
	}
	return &out
}

func clone[T any](item *T) *T {
	var out T
	if err := common.ConvertInterfaceToInterface(item, &out); err != nil {
		return item
	}
	return &out
}

// Len returns the number of stored resources.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Mutations counts create and delete calls.
func (m *Memory[T]) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls.Creates + m.Calls.Deletes
}

func (m *Memory[T]) Get(ctx context.Context, ref azure.Ref) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Gets++
	if m.Err != nil {
		return nil, m.Err
	}
	item, ok := m.items[key(ref)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, azure.ErrNotFound)
	}
	if m.OnGet != nil {
		m.OnGet(ref, item)
	}
	return clone(item), nil
}

// List returns the resources under ref's resource group and parent. An
// empty resource group lists everything.
func (m *Memory[T]) List(ctx context.Context, ref azure.Ref) ([]*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Lists++
	if m.Err != nil {
		return nil, m.Err
	}

	var result []*T
	for _, k := range common.SortedKeys(m.items) {
		stored := m.refs[k]
		if len(ref.ResourceGroup) > 0 && !strings.EqualFold(stored.ResourceGroup, ref.ResourceGroup) {
			continue
		}
		if len(ref.Parent) > 0 && !strings.EqualFold(stored.Parent, ref.Parent) {
			continue
		}
		if len(ref.Type) > 0 && !strings.EqualFold(stored.Type, ref.Type) {
			continue
		}
		result = append(result, clone(m.items[k]))
	}
	return result, nil
}

func (m *Memory[T]) CreateOrUpdate(ctx context.Context, ref azure.Ref, model T) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Creates++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.put(ref, model), nil
}

func (m *Memory[T]) Delete(ctx context.Context, ref azure.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Deletes++
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.items[key(ref)]; !ok {
		return fmt.Errorf("%s: %w", ref, azure.ErrNotFound)
	}
	delete(m.items, key(ref))
	delete(m.refs, key(ref))
	return nil
}
