package azure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

// Ref identifies one remote object. Parent names the enclosing object for
// nested resources: the virtual network of a subnet, the virtual machine of
// an extension, the zone of a record set. Type carries the record type for
// DNS record sets.
type Ref struct {
	ResourceGroup string
	Parent        string
	Type          string
	Name          string
}

func (r Ref) String() string {
	switch {
	case len(r.Parent) > 0 && len(r.Type) > 0:
		return fmt.Sprintf("%s/%s/%s/%s", r.ResourceGroup, r.Parent, r.Type, r.Name)
	case len(r.Parent) > 0:
		return fmt.Sprintf("%s/%s/%s", r.ResourceGroup, r.Parent, r.Name)
	default:
		return fmt.Sprintf("%s/%s", r.ResourceGroup, r.Name)
	}
}

// Operations is the common shape of every resource adapter. List with an
// empty resource group lists across the subscription where the API allows
// it. CreateOrUpdate waits for long running operations to finish.
type Operations[T any] interface {
	Get(ctx context.Context, ref Ref) (*T, error)
	List(ctx context.Context, ref Ref) ([]*T, error)
	CreateOrUpdate(ctx context.Context, ref Ref, model T) (*T, error)
	Delete(ctx context.Context, ref Ref) error
}

// collect drains every page of a pager, extracting the items of each page.
func collect[P any, T any](ctx context.Context, pager *runtime.Pager[P], items func(P) []*T) ([]*T, error) {
	var result []*T
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, items(page)...)
	}
	return result, nil
}

// wait polls a long running operation to completion.
func wait[T any](ctx context.Context, poller *runtime.Poller[T], err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	return poller.PollUntilDone(ctx, nil)
}

// PollStatus is the outcome of one poll in Poll.
type PollStatus int

const (
	PollContinue PollStatus = iota
	PollDone
)

// ErrPollTimeout is returned by Poll when the deadline passes first.
var ErrPollTimeout = errors.New("timed out waiting for operation")

// Poll calls check every interval until it reports PollDone, returns an
// error, the timeout elapses or ctx is cancelled.
func Poll(ctx context.Context, interval time.Duration, timeout time.Duration, check func(ctx context.Context) (PollStatus, error)) error {
	if interval <= 0 {
		interval = time.Second
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := check(ctx)
		if err != nil {
			return err
		}
		if status == PollDone {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrPollTimeout
		case <-ticker.C:
		}
	}
}
