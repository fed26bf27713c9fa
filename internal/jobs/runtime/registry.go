package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler runs one job type. Type must match JobRun.JobType.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds handlers in order and stops at the first nil, unnamed or
// duplicate one; handlers before it stay registered.
func (r *Registry) Register(handlers ...Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range handlers {
		if h == nil {
			return fmt.Errorf("nil job handler")
		}
		t := strings.TrimSpace(h.Type())
		if t == "" {
			return fmt.Errorf("job handler %T has an empty type", h)
		}
		if _, exists := r.handlers[t]; exists {
			return fmt.Errorf("job handler already registered for job_type=%s", t)
		}
		r.handlers[t] = h
	}
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types lists the registered job types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
