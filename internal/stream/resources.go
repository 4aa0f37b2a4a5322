package stream

import (
	"log/slog"
)

// resource is one native handle and the function that frees it.
type resource struct {
	name    string
	release func()
}

// resources tracks native handles in acquisition order and frees them in
// reverse. release runs at most once no matter how often it is called.
type resources struct {
	stack    []resource
	released bool
}

func (r *resources) track(name string, release func()) {
	r.stack = append(r.stack, resource{name: name, release: release})
}

func (r *resources) release(logger *slog.Logger) {
	if r.released {
		return
	}
	r.released = true
	for i := len(r.stack) - 1; i >= 0; i-- {
		res := r.stack[i]
		res.release()
		logger.Debug("released stream resource", slog.String("resource", res.name))
	}
	r.stack = nil
}

func (r *resources) names() []string {
	names := make([]string, len(r.stack))
	for i, res := range r.stack {
		names[i] = res.name
	}
	return names
}
