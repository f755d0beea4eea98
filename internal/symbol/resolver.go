// Package symbol turns callable identities into display names.
package symbol

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

// IdentityOf returns the code address identifying fn, or 0 if fn is not a
// non-nil function. Closures created from the same literal share one
// identity.
func IdentityOf(fn any) uintptr {
	if fn == nil {
		return 0
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// Resolver maps identities to names. Explicitly registered names win over
// the runtime symbol table. Safe for concurrent use.
type Resolver struct {
	mu    sync.RWMutex
	names map[uintptr]string // registered
	cache map[uintptr]string // resolved from the runtime
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		names: make(map[uintptr]string),
		cache: make(map[uintptr]string),
	}
}

// Register gives id a fixed display name.
func (r *Resolver) Register(id uintptr, name string) {
	if id == 0 || name == "" {
		return
	}
	r.mu.Lock()
	r.names[id] = name
	r.mu.Unlock()
}

// Resolve returns the display name of id.
func (r *Resolver) Resolve(id uintptr) string {
	r.mu.RLock()
	name, ok := r.names[id]
	if !ok {
		name, ok = r.cache[id]
	}
	r.mu.RUnlock()
	if ok {
		return name
	}

	if fn := runtime.FuncForPC(id); fn != nil {
		name = fn.Name()
	} else {
		name = fmt.Sprintf("%#x", id)
	}

	r.mu.Lock()
	r.cache[id] = name
	r.mu.Unlock()
	return name
}
