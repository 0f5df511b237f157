package runtime

import "context"

// Backend is the in-process entry point DirectRuntime drives. A concrete
// agent backend (whichever SDK a deployment links in) implements this by
// pushing raw message values to the returned channel until the run ends,
// then sending one final error (nil on success) and closing both channels.
// Wiring a concrete backend is a deployment concern (spec.md §1's "no
// concrete LLM/tool provider" boundary); DirectRuntime only adapts whatever
// is injected into the Runtime interface.
type Backend func(ctx context.Context, req Request) (<-chan any, <-chan error)

// DirectRuntime executes a Request by calling an in-process Backend
// directly — no subprocess, no container (spec.md §4.5).
type DirectRuntime struct {
	backend Backend
}

// NewDirectRuntime wraps backend as a Runtime.
func NewDirectRuntime(backend Backend) *DirectRuntime {
	return &DirectRuntime{backend: backend}
}

func (d *DirectRuntime) Stream(ctx context.Context, req Request) (<-chan any, <-chan error) {
	return d.backend(ctx, req)
}

func (d *DirectRuntime) Name() string { return "direct" }
