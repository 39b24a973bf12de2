package azure

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
)

// ResourceID builds an ARM resource ID for a resource in a resource group.
// The remainder is the provider portion, e.g.
// "Microsoft.Compute/virtualMachines/vm1".
func ResourceID(subscriptionID, resourceGroup, remainder string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/%s",
		subscriptionID, resourceGroup, strings.TrimPrefix(remainder, "/"))
}

// NameFromID returns the final name segment of an ARM ID.
func NameFromID(id string) string {
	parsed, err := arm.ParseResourceID(id)
	if err != nil {
		parts := strings.Split(strings.TrimRight(id, "/"), "/")
		return parts[len(parts)-1]
	}
	return parsed.Name
}

// ResourceGroupFromID returns the resource group segment of an ARM ID.
func ResourceGroupFromID(id string) string {
	parsed, err := arm.ParseResourceID(id)
	if err != nil {
		return ""
	}
	return parsed.ResourceGroupName
}

// IsResourceID reports whether s looks like a full ARM ID.
func IsResourceID(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "/subscriptions/")
}
