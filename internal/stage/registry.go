package stage

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.:-]*$`)

// Registry maps stage IDs to implementations. Registration order is kept
// and used wherever a deterministic listing is needed.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: map[string]Stage{}}
}

// Register adds s under s.ID().
func (r *Registry) Register(s Stage) error {
	if s == nil {
		return ErrNilStage
	}
	id := s.ID()
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidStageID, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, id)
	}
	r.stages[id] = s
	r.order = append(r.order, id)
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(stages ...Stage) {
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Get returns the stage registered under id.
func (r *Registry) Get(id string) (Stage, error) {
	r.mu.RLock()
	s, ok := r.stages[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, id)
	}
	return s, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stages[id]
	return ok
}

// Resolve maps ids onto registered stages in the given order. IDs that are
// not registered are returned in missing; duplicates keep their first
// position only.
func (r *Registry) Resolve(ids []string) (resolved []Stage, missing []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := r.stages[id]; ok {
			resolved = append(resolved, s)
			continue
		}
		missing = append(missing, id)
	}
	return resolved, missing
}

// IDs returns registered IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered stages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// HealthCheck collects every stage's health report keyed by stage ID.
func (r *Registry) HealthCheck(ctx context.Context) map[string]map[string]any {
	r.mu.RLock()
	stages := make([]Stage, 0, len(r.order))
	for _, id := range r.order {
		stages = append(stages, r.stages[id])
	}
	r.mu.RUnlock()

	out := make(map[string]map[string]any, len(stages))
	for _, s := range stages {
		out[s.ID()] = safeHealth(ctx, s)
	}
	return out
}

func safeHealth(ctx context.Context, s Stage) (report map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			report = map[string]any{"status": "unhealthy", "error": fmt.Sprint(rec)}
		}
	}()
	report = s.HealthCheck(ctx)
	if report == nil {
		report = map[string]any{"status": "unknown"}
	}
	return report
}
