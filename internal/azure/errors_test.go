package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("vm1: %w", ErrNotFound)))
	assert.True(t, IsNotFound(&azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"}))
	assert.False(t, IsNotFound(&azcore.ResponseError{StatusCode: http.StatusForbidden, ErrorCode: "AuthorizationFailed"}))
	assert.False(t, IsNotFound(errors.New("connection reset")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
	assert.Equal(t, "Conflict (status 409)",
		ErrorMessage(&azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "Conflict"}))
}

func TestClientFamily(t *testing.T) {
	title, err := ClientFamily("compute")
	require.NoError(t, err)
	assert.Equal(t, "Compute", title)

	title, err = ClientFamily("policy")
	require.NoError(t, err)
	assert.Equal(t, "Policy", title)

	for _, family := range []string{"web", "monitor", "privatedns", "managementlock"} {
		_, err := ClientFamily(family)
		assert.ErrorIs(t, err, ErrClientNotAvailable)
	}
}

func TestPoll(t *testing.T) {
	t.Run("done after a few polls", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), time.Millisecond, time.Second, func(ctx context.Context) (PollStatus, error) {
			calls++
			if calls == 3 {
				return PollDone, nil
			}
			return PollContinue, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("check error stops polling", func(t *testing.T) {
		boom := errors.New("boom")
		err := Poll(context.Background(), time.Millisecond, time.Second, func(ctx context.Context) (PollStatus, error) {
			return PollContinue, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("timeout", func(t *testing.T) {
		err := Poll(context.Background(), 5*time.Millisecond, 20*time.Millisecond, func(ctx context.Context) (PollStatus, error) {
			return PollContinue, nil
		})
		assert.ErrorIs(t, err, ErrPollTimeout)
	})
}

func TestIDs(t *testing.T) {
	id := ResourceID("sub", "rg1", "Microsoft.Compute/virtualMachines/vm1")
	assert.Equal(t, "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/vm1", id)
	assert.Equal(t, "vm1", NameFromID(id))
	assert.Equal(t, "rg1", ResourceGroupFromID(id))
	assert.True(t, IsResourceID(id))
	assert.False(t, IsResourceID("vm1"))
	assert.Equal(t, "plain", NameFromID("plain"))
}
