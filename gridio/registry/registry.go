// Package registry keeps a bounded table of logical names for open grid
// files. Each assignment is published into the process environment as
// NAME=path so that tools which address files by environment indirection
// can resolve it.
package registry

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultCapacity is the number of concurrent assignments.
	DefaultCapacity = 1024

	// Prefix starts every logical name; the slot index follows as at least
	// 4 digits.
	Prefix = "GRIDIO"
)

var (
	ErrFull      = errors.New("logical name registry is full")
	ErrEmptyPath = errors.New("empty path")
)

type slot struct {
	used bool
	path string
	mode string
}

// Registry is not safe for concurrent use.
type Registry struct {
	slots   []slot
	count   int
	publish bool
}

type Option func(*Registry)

// WithoutEnvironment keeps assignments out of the process environment.
func WithoutEnvironment() Option {
	return func(r *Registry) {
		r.publish = false
	}
}

// New returns a registry with capacity slots; a capacity below one selects
// DefaultCapacity.
func New(capacity int, opts ...Option) *Registry {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	r := &Registry{slots: make([]slot, capacity), publish: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the logical name of slot i.
func Name(i int) string {
	return fmt.Sprintf("%s%04d", Prefix, i)
}

func index(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, Prefix)
	if !ok || len(digits) < 4 {
		return 0, false
	}
	i, err := strconv.Atoi(digits)
	if err != nil || i < 0 || Name(i) != name {
		return 0, false
	}
	return i, true
}

// Assign takes the first free slot for path and returns its logical name.
func (r *Registry) Assign(path, mode string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	for i := range r.slots {
		if r.slots[i].used {
			continue
		}
		name := Name(i)
		if r.publish {
			if err := os.Setenv(name, path); err != nil {
				return "", err
			}
		}
		r.slots[i] = slot{used: true, path: path, mode: mode}
		r.count++
		return name, nil
	}
	return "", fmt.Errorf("%w: %d names assigned, cannot add %q", ErrFull, r.count, path)
}

// Unassign frees the slot behind name. Unknown names are ignored.
func (r *Registry) Unassign(name string) {
	i, ok := index(name)
	if !ok || i >= len(r.slots) || !r.slots[i].used {
		return
	}
	if r.publish {
		_ = os.Unsetenv(name)
	}
	r.slots[i] = slot{}
	r.count--
}

// Lookup returns the path and mode assigned to name.
func (r *Registry) Lookup(name string) (path, mode string, ok bool) {
	i, ok := index(name)
	if !ok || i >= len(r.slots) || !r.slots[i].used {
		return "", "", false
	}
	return r.slots[i].path, r.slots[i].mode, true
}

// Len is the number of assigned names.
func (r *Registry) Len() int {
	return r.count
}

func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Close unassigns every name.
func (r *Registry) Close() {
	for i := range r.slots {
		if r.slots[i].used {
			r.Unassign(Name(i))
		}
	}
}
