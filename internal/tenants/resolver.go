package tenants

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound means no tenant is registered for the dialed number.
	// It is an expected configuration gap, not a fault.
	ErrTenantNotFound = errors.New("tenants: no tenant for number")
	// ErrLookupFailed means the directory could not be consulted.
	ErrLookupFailed = errors.New("tenants: directory lookup failed")
)

// Directory is the read-only tenant store keyed by exact phone number.
// A missing tenant is reported as (Profile{}, false, nil), never as an error.
type Directory interface {
	LookupByPhone(ctx context.Context, number string) (Profile, bool, error)
}

// Resolver maps a dialed number to a tenant profile.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the tenant for toNumber. The caller trims whitespace.
// Errors are either ErrTenantNotFound or wrap ErrLookupFailed.
func (r *Resolver) Resolve(ctx context.Context, toNumber string) (Profile, error) {
	if toNumber == "" {
		return Profile{}, ErrTenantNotFound
	}
	if r == nil || r.dir == nil {
		return Profile{}, fmt.Errorf("%w: directory not configured", ErrLookupFailed)
	}

	p, ok, err := r.dir.LookupByPhone(ctx, toNumber)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if !ok {
		return Profile{}, ErrTenantNotFound
	}
	return p.clone(), nil
}
