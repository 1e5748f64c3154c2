package listview

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"

	"catalogweb/internal/log"
	"catalogweb/internal/outside"
)

// Registry tracks the mounted views of every open list page. Views nobody has
// touched for ttl are closed by Sweep.
type Registry struct {
	svc  Service
	opts Options
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

func NewRegistry(svc Service, ttl time.Duration, opts Options) *Registry {
	return &Registry{
		svc:   svc,
		opts:  opts,
		ttl:   ttl,
		now:   time.Now,
		views: map[string]*View{},
	}
}

// Mount creates a view for one page load. Each page gets its own document.
func (r *Registry) Mount(path, rawQuery string) *View {
	v := newView(uuid.NewString(), path, rawQuery, outside.NewDocument(), r.svc, r.opts)
	r.mu.Lock()
	r.views[v.id] = v
	r.mu.Unlock()
	r.opts.Metrics.ViewMounted()
	log.Event(zapcore.DebugLevel, "listview.mount", nil, map[string]any{"view": v.id, "query": rawQuery})
	return v
}

func (r *Registry) Get(id string) (*View, bool) {
	r.mu.Lock()
	v, ok := r.views[id]
	r.mu.Unlock()
	if ok {
		v.touch()
	}
	return v, ok
}

// Close unmounts id. It reports whether id was mounted.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	v.Close()
	r.opts.Metrics.ViewClosed()
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep closes idle views and returns how many it closed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	var idle []string
	r.mu.Lock()
	for id, v := range r.views {
		if v.idleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, id := range idle {
		if r.Close(id) {
			n++
		}
	}
	if n > 0 {
		log.Event(zapcore.InfoLevel, "listview.sweep", nil, map[string]any{"closed": n})
	}
	return n
}

// Run sweeps every interval until ctx ends, then closes every view.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.Sweep()
		case <-ctx.Done():
			r.CloseAll()
			return
		}
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Close(id)
	}
}
