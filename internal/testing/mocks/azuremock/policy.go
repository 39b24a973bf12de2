package azuremock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armpolicy"

	"github.com/thand-io/azurerm/internal/azure"
)

// PolicyAssignments stores assignments by scope and name.
type PolicyAssignments struct {
	mu           sync.Mutex
	subscription string
	items        []*armpolicy.Assignment

	Calls Counters
	Err   error
}

func NewPolicyAssignments(sub string) *PolicyAssignments {
	return &PolicyAssignments{subscription: sub}
}

func assignmentID(scope, name string) string {
	return strings.TrimSuffix(scope, "/") + "/providers/Microsoft.Authorization/policyAssignments/" + name
}

func (p *PolicyAssignments) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls.Creates + p.Calls.Deletes
}

func (p *PolicyAssignments) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *PolicyAssignments) find(scope, name string) int {
	id := assignmentID(scope, name)
	for i, item := range p.items {
		if strings.EqualFold(*item.ID, id) {
			return i
		}
	}
	return -1
}

func (p *PolicyAssignments) Get(ctx context.Context, scope, name string) (*armpolicy.Assignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Gets++
	if p.Err != nil {
		return nil, p.Err
	}
	i := p.find(scope, name)
	if i < 0 {
		return nil, fmt.Errorf("policy assignment %s: %w", name, azure.ErrNotFound)
	}
	return clone(p.items[i]), nil
}

func (p *PolicyAssignments) List(ctx context.Context, resourceGroup, filter string) ([]*armpolicy.Assignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Lists++
	if p.Err != nil {
		return nil, p.Err
	}
	prefix := strings.ToLower(fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", p.subscription, resourceGroup))
	var result []*armpolicy.Assignment
	for _, item := range p.items {
		if len(resourceGroup) > 0 && !strings.HasPrefix(strings.ToLower(*item.ID), prefix+"/") {
			continue
		}
		result = append(result, clone(item))
	}
	return result, nil
}

func (p *PolicyAssignments) Create(ctx context.Context, scope, name string, assignment armpolicy.Assignment) (*armpolicy.Assignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Creates++
	if p.Err != nil {
		return nil, p.Err
	}
	stored := clone(&assignment)
	stored.ID = to.Ptr(assignmentID(scope, name))
	stored.Name = to.Ptr(name)
	stored.Type = to.Ptr("Microsoft.Authorization/policyAssignments")
	if stored.Properties == nil {
		stored.Properties = &armpolicy.AssignmentProperties{}
	}
	stored.Properties.Scope = to.Ptr(scope)

	if i := p.find(scope, name); i >= 0 {
		p.items[i] = stored
	} else {
		p.items = append(p.items, stored)
	}
	return clone(stored), nil
}

func (p *PolicyAssignments) Delete(ctx context.Context, scope, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Deletes++
	if p.Err != nil {
		return p.Err
	}
	i := p.find(scope, name)
	if i < 0 {
		return fmt.Errorf("policy assignment %s: %w", name, azure.ErrNotFound)
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	return nil
}

// PolicyDefinitions stores custom definitions of the subscription next to
// built-in ones seeded with SeedBuiltIn. Get only finds custom definitions,
// as the service does.
type PolicyDefinitions struct {
	mu           sync.Mutex
	subscription string
	items        []*armpolicy.Definition

	Calls Counters
	Err   error
}

func NewPolicyDefinitions(sub string) *PolicyDefinitions {
	return &PolicyDefinitions{subscription: sub}
}

// SeedBuiltIn adds a built-in definition.
func (p *PolicyDefinitions) SeedBuiltIn(name, displayName string) *armpolicy.Definition {
	p.mu.Lock()
	defer p.mu.Unlock()
	item := &armpolicy.Definition{
		ID:   to.Ptr("/providers/Microsoft.Authorization/policyDefinitions/" + name),
		Name: to.Ptr(name),
		Type: to.Ptr("Microsoft.Authorization/policyDefinitions"),
		Properties: &armpolicy.DefinitionProperties{
			DisplayName: to.Ptr(displayName),
			PolicyType:  to.Ptr(armpolicy.PolicyTypeBuiltIn),
		},
	}
	p.items = append(p.items, item)
	return clone(item)
}

func (p *PolicyDefinitions) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls.Creates + p.Calls.Deletes
}

func (p *PolicyDefinitions) customID(name string) string {
	return fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Authorization/policyDefinitions/%s", p.subscription, name)
}

func (p *PolicyDefinitions) find(name string) int {
	id := p.customID(name)
	for i, item := range p.items {
		if strings.EqualFold(*item.ID, id) {
			return i
		}
	}
	return -1
}

func (p *PolicyDefinitions) Get(ctx context.Context, name string) (*armpolicy.Definition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Gets++
	if p.Err != nil {
		return nil, p.Err
	}
	i := p.find(name)
	if i < 0 {
		return nil, fmt.Errorf("policy definition %s: %w", name, azure.ErrNotFound)
	}
	return clone(p.items[i]), nil
}

func (p *PolicyDefinitions) List(ctx context.Context) ([]*armpolicy.Definition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Lists++
	if p.Err != nil {
		return nil, p.Err
	}
	result := make([]*armpolicy.Definition, 0, len(p.items))
	for _, item := range p.items {
		result = append(result, clone(item))
	}
	return result, nil
}

func (p *PolicyDefinitions) CreateOrUpdate(ctx context.Context, name string, definition armpolicy.Definition) (*armpolicy.Definition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Creates++
	if p.Err != nil {
		return nil, p.Err
	}
	stored := clone(&definition)
	stored.ID = to.Ptr(p.customID(name))
	stored.Name = to.Ptr(name)
	stored.Type = to.Ptr("Microsoft.Authorization/policyDefinitions")
	if stored.Properties == nil {
		stored.Properties = &armpolicy.DefinitionProperties{}
	}
	if stored.Properties.PolicyType == nil {
		stored.Properties.PolicyType = to.Ptr(armpolicy.PolicyTypeCustom)
	}

	if i := p.find(name); i >= 0 {
		p.items[i] = stored
	} else {
		p.items = append(p.items, stored)
	}
	return clone(stored), nil
}

func (p *PolicyDefinitions) Delete(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls.Deletes++
	if p.Err != nil {
		return p.Err
	}
	i := p.find(name)
	if i < 0 {
		return fmt.Errorf("policy definition %s: %w", name, azure.ErrNotFound)
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	return nil
}
