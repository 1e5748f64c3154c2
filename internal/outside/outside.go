// Package outside detects pointer interactions that land outside a rendered region.
package outside

import (
	"strings"
	"sync"
)

// Interaction is one pointer event. Target is the slash path of the innermost
// region the pointer hit, e.g. "header/category-dropdown/option". An empty
// Target hit the page outside every named region.
type Interaction struct {
	Target string
}

type Region struct {
	path string
}

func NewRegion(path string) *Region {
	return &Region{path: strings.Trim(path, "/")}
}

func (r *Region) Path() string { return r.path }

// Contains reports whether target is the region itself or one of its descendants.
func (r *Region) Contains(target string) bool {
	target = strings.Trim(target, "/")
	if r.path == "" {
		return true
	}
	return target == r.path || strings.HasPrefix(target, r.path+"/")
}

// Ref points at a region while it is mounted and at nothing otherwise.
type Ref struct {
	mu     sync.RWMutex
	region *Region
}

func (r *Ref) Set(region *Region) {
	r.mu.Lock()
	r.region = region
	r.mu.Unlock()
}

func (r *Ref) Get() *Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.region
}

// Document is the page-wide listener registry. One exists per open page.
type Document struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(Interaction)
}

func NewDocument() *Document { return &Document{} }

// Listen adds fn and returns a release func. Releasing twice is harmless.
func (d *Document) Listen(fn func(Interaction)) (remove func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listener{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, l := range d.listeners {
				if l.id == id {
					d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Dispatch delivers ev to every listener registered at the time of the call.
// Listeners run on the caller's goroutine, outside the registry lock.
func (d *Document) Dispatch(ev Interaction) {
	d.mu.Lock()
	ls := append([]listener(nil), d.listeners...)
	d.mu.Unlock()
	for _, l := range ls {
		l.fn(ev)
	}
}

func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Detect calls cb once for every interaction on doc that misses the region ref
// points at. Nothing fires while ref is empty. The listener stays attached until
// detach is called.
func Detect(doc *Document, ref *Ref, cb func()) (detach func()) {
	return doc.Listen(func(ev Interaction) {
		region := ref.Get()
		if region == nil {
			return
		}
		if !region.Contains(ev.Target) {
			cb()
		}
	})
}
