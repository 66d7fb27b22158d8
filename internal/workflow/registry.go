package workflow

import (
	"fmt"
	"sync"
)

// Registry is the workflow catalogue.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workflows: map[string]Workflow{}}
}

// Register validates and adds w.
func (r *Registry) Register(w Workflow) error {
	if w.FlowPattern == "" {
		w.FlowPattern = Descending
	}
	if err := w.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[w.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, w.Name)
	}
	r.workflows[w.Name] = w.clone()
	r.order = append(r.order, w.Name)
	return nil
}

// Get returns a copy of the named workflow.
func (r *Registry) Get(name string) (Workflow, error) {
	r.mu.RLock()
	w, ok := r.workflows[name]
	r.mu.RUnlock()
	if !ok {
		return Workflow{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	return w.clone(), nil
}

// List returns copies of all workflows in registration order.
func (r *Registry) List() []Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Workflow, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.workflows[name].clone())
	}
	return out
}

// Len returns the number of registered workflows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
