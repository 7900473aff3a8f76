package tenants

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory for tests and local development.
type MemoryDirectory struct {
	mu       sync.RWMutex
	byNumber map[string]Profile
	err      error
}

func NewMemoryDirectory(profiles ...Profile) *MemoryDirectory {
	d := &MemoryDirectory{byNumber: map[string]Profile{}}
	for _, p := range profiles {
		d.Put(p)
	}
	return d
}

// Put registers or replaces the profile for p.PhoneNumber.
func (d *MemoryDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byNumber[p.PhoneNumber] = p.clone()
}

// SetErr makes every following lookup fail with err. A nil err restores
// normal lookups.
func (d *MemoryDirectory) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *MemoryDirectory) LookupByPhone(ctx context.Context, number string) (Profile, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return Profile{}, false, d.err
	}
	p, ok := d.byNumber[number]
	if !ok {
		return Profile{}, false, nil
	}
	return p.clone(), true, nil
}
