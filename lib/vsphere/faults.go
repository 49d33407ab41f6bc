package vsphere

import (
	"fmt"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// classify maps a non-mount error to the compute taxonomy.
func classify(err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*find.NotFoundError); ok {
		return fmt.Errorf("%s: %w", action, err)
	}
	if soap.IsSoapFault(err) {
		return fmt.Errorf("%w: %s: %v", compute.ErrRejected, action, err)
	}
	return fmt.Errorf("%w: %s: %v", compute.ErrUnreachable, action, err)
}

// classifyMount maps a CreateNasDatastore failure.
func classifyMount(err error, multiSession bool) error {
	if !soap.IsSoapFault(err) {
		return fmt.Errorf("%w: %v", compute.ErrUnreachable, err)
	}
	switch f := soap.ToSoapFault(err).VimFault().(type) {
	case types.DuplicateName, types.AlreadyExists:
		return fmt.Errorf("%w: %v", compute.ErrAlreadyMounted, err)
	case types.NotSupported:
		if multiSession {
			return fmt.Errorf("%w: %v", compute.ErrVersionUnsupported, err)
		}
	case types.InvalidArgument:
		if multiSession && f.InvalidProperty == "connections" {
			return fmt.Errorf("%w: %v", compute.ErrVersionUnsupported, err)
		}
	case types.NoPermission:
		return fmt.Errorf("%w: %v", compute.ErrRejected, err)
	}
	return fmt.Errorf("%w: %v", compute.ErrMountRejected, err)
}
