package azure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by adapters and fakes when a resource does not
// exist. IsNotFound also recognises 404 responses from the SDK.
var ErrNotFound = errors.New("resource not found")

// ErrClientNotAvailable is returned for client families this module does not
// provide.
var ErrClientNotAvailable = errors.New("client type not available")

// IsNotFound reports whether err means the remote object does not exist.
// Anything else, including authorization failures, is not absence.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return false
}

// ErrorMessage extracts a readable message from an SDK error. Azure
// response errors carry a lot of request detail; the error code and status
// are enough for a result mapping.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.RawResponse == nil {
		return fmt.Sprintf("%s (status %d)", respErr.ErrorCode, respErr.StatusCode)
	}
	return err.Error()
}

var familyTitles = map[string]string{
	"compute":       "Compute",
	"network":       "Network",
	"resource":      "Resource",
	"policy":        "Policy",
	"subscription":  "Subscription",
	"keyvault":      "Key Vault",
	"dns":           "DNS",
	"storage":       "Storage",
	"authorization": "Authorization",
}

// ClientFamily validates a client family name and returns its display title.
func ClientFamily(name string) (string, error) {
	if title, ok := familyTitles[name]; ok {
		return title, nil
	}
	return "", fmt.Errorf("%w: %s", ErrClientNotAvailable, name)
}

// LogCloudError logs a provider failure for a client family at the given
// logrus level name. Unknown levels log at error.
func LogCloudError(family string, err error, level string) {
	title, familyErr := ClientFamily(family)
	if familyErr != nil {
		title = family
	}

	logLevel, parseErr := logrus.ParseLevel(level)
	if parseErr != nil || len(level) == 0 {
		logLevel = logrus.ErrorLevel
	}

	logrus.StandardLogger().Logf(logLevel,
		"An Azure Resource Manager %s error has occurred: %s", title, ErrorMessage(err))
}
