package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/onkernel/nasattach/lib/compute"
)

// mountStrategy is one way of getting the datastore onto a host. Strategies
// are tried in order; each decides from the previous strategy's error
// whether it applies.
type mountStrategy struct {
	name    string
	applies func(prev error) bool
	attempt func(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, error)

	// settle is set when the datastore may still be appearing after the
	// attempt returns and must be verified after the settle delay.
	settle bool
}

const (
	strategyCreate = "create"
	strategyAdopt  = "adopt-existing"
)

func (w *workflow) defaultStrategies() []mountStrategy {
	return []mountStrategy{
		{
			name:    strategyCreate,
			applies: func(prev error) bool { return prev == nil },
			attempt: w.compute.MountExport,
			settle:  true,
		},
		{
			name:    strategyAdopt,
			applies: func(prev error) bool { return errors.Is(prev, compute.ErrAlreadyMounted) },
			attempt: w.adoptExisting,
		},
	}
}

// runStrategies returns the outcome of the first strategy that succeeds, or
// the error of the last one attempted.
func (w *workflow) runStrategies(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, *mountStrategy, error) {
	var prev error
	for i := range w.strategies {
		s := &w.strategies[i]
		if !s.applies(prev) {
			continue
		}
		outcome, err := s.attempt(ctx, host, req)
		if err == nil && outcome == nil {
			err = fmt.Errorf("%w: no outcome reported", compute.ErrMountRejected)
		}
		if err == nil {
			return outcome, s, nil
		}
		prev = fmt.Errorf("%s: %w", s.name, err)
	}
	if prev == nil {
		prev = fmt.Errorf("%w: no mount strategy applies", compute.ErrMountRejected)
	}
	return nil, nil, prev
}

// adoptExisting accepts a datastore that is already mounted under the
// requested name, as long as it is backed by the same export.
func (w *workflow) adoptExisting(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, error) {
	info, err := w.compute.VerifyDatastore(ctx, host, req.DatastoreName)
	if err != nil {
		return nil, err
	}
	if info.RemotePath != "" && info.RemotePath != req.ExportPath {
		return nil, fmt.Errorf("%w: datastore %s is backed by %s, not %s",
			compute.ErrMountRejected, req.DatastoreName, info.RemotePath, req.ExportPath)
	}
	return &compute.MountOutcome{
		Host:          host,
		Status:        compute.StatusMounted,
		Detail:        fmt.Sprintf("adopted existing datastore %s", req.DatastoreName),
		CapacityBytes: info.CapacityBytes,
		FreeBytes:     info.FreeBytes,
	}, nil
}
