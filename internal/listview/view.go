// Package listview hosts the server-side product list views. Each open list
// page owns one View; its state is mutated only on the view's event loop.
package listview

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"

	"catalogweb/internal/debounce"
	"catalogweb/internal/domain"
	"catalogweb/internal/log"
	"catalogweb/internal/metrics"
	"catalogweb/internal/outside"
	"catalogweb/internal/query"
)

var ErrClosed = errors.New("listview: view closed")

// DropdownRegion is the slash path of the category dropdown on the list page.
const DropdownRegion = "header/category-dropdown"

// Service is the slice of the catalog API a list view needs.
type Service interface {
	ListProducts(ctx context.Context, filters url.Values, page int) (domain.ListPage, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type Options struct {
	Delay        time.Duration
	Clock        debounce.Clock
	FetchTimeout time.Duration
	StorageBase  string
	Metrics      *metrics.Metrics
	// Navigator, when set, sees every location rewrite.
	Navigator query.Navigator
}

func (o Options) withDefaults() Options {
	if o.Delay <= 0 {
		o.Delay = 300 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = debounce.RealClock
	}
	return o
}

// Snapshot is what the browser renders. It is a copy; mutating it has no effect on the view.
type Snapshot struct {
	ID           string                  `json:"id"`
	Version      uint64                  `json:"version"`
	Products     []domain.ProductSummary `json:"products"`
	CurrentPage  int                     `json:"current_page"`
	LastPage     int                     `json:"last_page"`
	PrevDisabled bool                    `json:"prev_disabled"`
	NextDisabled bool                    `json:"next_disabled"`
	Filters      query.Filters           `json:"filters"`
	Selected     []string                `json:"selected"`
	Categories   []domain.Category       `json:"categories"`
	DropdownOpen bool                    `json:"dropdown_open"`
	Location     string                  `json:"location"`
	Settled      bool                    `json:"settled"`
}

func (s Snapshot) Filter(key string) string { return s.Filters.Get(key) }

func (s Snapshot) IsSelected(name string) bool {
	for _, n := range s.Selected {
		if n == name {
			return true
		}
	}
	return false
}

func (s Snapshot) Cursor() domain.PageCursor {
	return domain.PageCursor{CurrentPage: s.CurrentPage, LastPage: s.LastPage}
}

type View struct {
	id   string
	svc  Service
	opts Options

	doc    *outside.Document
	ref    outside.Ref
	store  *query.Store
	deb    *debounce.Debouncer[query.State]
	detach func()

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	done   chan struct{}
	once   sync.Once

	lastSeen atomic.Int64

	// owned by the loop
	seq          uint64
	inflight     int
	resolved     *query.State
	products     []domain.ProductSummary
	deleted      map[int64]struct{}
	lastPage     int
	categories   []domain.Category
	catsDone     bool
	dropdownOpen bool
	dirty        bool

	mu      sync.Mutex
	snap    Snapshot
	changed chan struct{}
}

// newView mounts a list view for path?rawQuery on doc and starts its loop, its
// category load and its first fetch.
func newView(id, path, rawQuery string, doc *outside.Document, svc Service, opts Options) *View {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		id:      id,
		svc:     svc,
		opts:    opts,
		doc:     doc,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan func(), 64),
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
	v.touch()
	v.store = query.NewStore(path, rawQuery, query.NavigatorFunc(v.replaceLocation))
	v.deb = debounce.New(opts.Delay, func(st query.State) {
		_ = v.post(func() { v.startFetch(st) })
	}, debounce.WithClock(opts.Clock))
	v.store.Subscribe(v.onQueryChange)

	v.ref.Set(outside.NewRegion(DropdownRegion))
	v.detach = outside.Detect(doc, &v.ref, func() {
		_ = v.post(v.closeDropdown)
	})

	v.dirty = true
	v.publish()
	go v.loop()

	go v.loadCategories()
	_ = v.post(func() { v.startFetch(v.store.State()) })
	return v
}

func (v *View) ID() string { return v.id }

// Document is the page-wide listener registry this view's dropdown detector is attached to.
func (v *View) Document() *outside.Document { return v.doc }

func (v *View) loop() {
	defer close(v.done)
	for {
		select {
		case fn := <-v.events:
			fn()
			v.publish()
		case <-v.ctx.Done():
			return
		}
	}
}

// post queues fn on the loop and returns without waiting.
func (v *View) post(fn func()) error {
	select {
	case <-v.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case v.events <- fn:
		return nil
	case <-v.ctx.Done():
		return ErrClosed
	}
}

// do runs fn on the loop and waits until its effects are published.
func (v *View) do(fn func()) error {
	ran := make(chan struct{})
	if err := v.post(func() { fn(); v.publish(); close(ran) }); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-v.done:
		return ErrClosed
	}
}

func (v *View) replaceLocation(loc string) {
	if v.opts.Navigator != nil {
		v.opts.Navigator.Replace(loc)
	}
}

func (v *View) onQueryChange(st query.State) {
	v.dirty = true
	v.deb.Call(st)
}

func (v *View) startFetch(st query.State) {
	if !st.Equal(v.store.State()) {
		// a later change has its own call scheduled
		return
	}
	v.seq++
	seq := v.seq
	v.inflight++
	v.dirty = true

	ctx := v.ctx
	var cancel context.CancelFunc = func() {}
	if v.opts.FetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, v.opts.FetchTimeout)
	}
	filters, page := st.Filters().Values(), st.Page()
	go func() {
		defer cancel()
		res, err := v.svc.ListProducts(ctx, filters, page)
		_ = v.post(func() { v.finishFetch(seq, st, res, err) })
	}()
}

func (v *View) finishFetch(seq uint64, st query.State, res domain.ListPage, err error) {
	v.inflight--
	v.dirty = true
	if seq != v.seq || !st.Equal(v.store.State()) {
		v.opts.Metrics.Fetch(metrics.Stale)
		log.Event(zapcore.DebugLevel, "listview.fetch.stale", nil, map[string]any{
			"view": v.id, "seq": seq, "latest": v.seq,
		})
		return
	}
	resolved := st
	v.resolved = &resolved
	if err != nil {
		v.opts.Metrics.Fetch(metrics.Fail)
		log.Event(zapcore.WarnLevel, "listview.fetch.fail", err, map[string]any{
			"view": v.id, "query": query.ToLocationString(st),
		})
		return
	}
	v.opts.Metrics.Fetch(metrics.OK)
	rows := make([]domain.ProductSummary, 0, len(res.Data))
	for _, p := range res.Data {
		// a fetch in flight across a delete may still carry the row
		if _, gone := v.deleted[p.ID]; gone {
			continue
		}
		rows = append(rows, domain.Summarize(p, v.opts.StorageBase))
	}
	v.products = rows
	v.lastPage = res.LastPage
}

func (v *View) loadCategories() {
	cats, err := v.svc.ListCategories(v.ctx)
	_ = v.post(func() {
		v.catsDone = true
		v.dirty = true
		if err != nil {
			log.Event(zapcore.WarnLevel, "listview.categories.fail", err, map[string]any{"view": v.id})
			return
		}
		v.categories = cats
	})
}

func (v *View) closeDropdown() {
	if v.dropdownOpen {
		v.dropdownOpen = false
		v.dirty = true
	}
}

func (v *View) SetFilter(key, value string) error {
	v.touch()
	return v.do(func() { v.store.SetFilter(key, value) })
}

func (v *View) SetPage(n int) error {
	v.touch()
	return v.do(func() { v.store.SetPage(n) })
}

func (v *View) Next() error {
	v.touch()
	return v.do(func() {
		if !v.cursor().NextDisabled() {
			v.store.Next()
		}
	})
}

func (v *View) Prev() error {
	v.touch()
	return v.do(func() {
		if !v.cursor().PrevDisabled() {
			v.store.Prev()
		}
	})
}

func (v *View) ToggleCategory(name string) error {
	v.touch()
	return v.do(func() { v.store.ToggleCategory(name) })
}

func (v *View) ToggleDropdown() error {
	v.touch()
	return v.do(func() {
		v.dropdownOpen = !v.dropdownOpen
		v.dirty = true
	})
}

// Interact delivers a pointer interaction on the view's page and returns after
// the loop has handled whatever it triggered.
func (v *View) Interact(target string) error {
	v.touch()
	v.doc.Dispatch(outside.Interaction{Target: target})
	return v.do(func() {})
}

// Delete removes id on the server and, once confirmed, from the displayed rows.
// On failure the rows are left alone and the error is returned.
func (v *View) Delete(ctx context.Context, id int64) error {
	v.touch()
	if err := v.svc.DeleteProduct(ctx, id); err != nil {
		v.opts.Metrics.Delete(metrics.Fail)
		log.Event(zapcore.WarnLevel, "listview.delete.fail", err, map[string]any{"view": v.id, "product_id": id})
		return err
	}
	v.opts.Metrics.Delete(metrics.OK)
	return v.do(func() {
		if v.deleted == nil {
			v.deleted = map[int64]struct{}{}
		}
		v.deleted[id] = struct{}{}
		for i, p := range v.products {
			if p.ID == id {
				v.products = append(v.products[:i:i], v.products[i+1:]...)
				v.dirty = true
				return
			}
		}
	})
}

func (v *View) cursor() domain.PageCursor {
	return domain.PageCursor{CurrentPage: v.store.Page(), LastPage: v.lastPage}
}

func (v *View) settled() bool {
	return v.catsDone && v.inflight == 0 && v.resolved != nil && v.resolved.Equal(v.store.State())
}

func (v *View) publish() {
	if !v.dirty {
		return
	}
	v.dirty = false
	st := v.store.State()
	cur := v.cursor()
	s := Snapshot{
		ID:           v.id,
		Products:     append([]domain.ProductSummary(nil), v.products...),
		CurrentPage:  cur.CurrentPage,
		LastPage:     cur.LastPage,
		PrevDisabled: cur.PrevDisabled(),
		NextDisabled: cur.NextDisabled(),
		Filters:      st.Filters(),
		Selected:     st.Selected(),
		Categories:   append([]domain.Category(nil), v.categories...),
		DropdownOpen: v.dropdownOpen,
		Location:     v.store.Location(),
		Settled:      v.settled(),
	}

	v.mu.Lock()
	s.Version = v.snap.Version + 1
	v.snap = s
	close(v.changed)
	v.changed = make(chan struct{})
	v.mu.Unlock()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// WaitChange blocks until the snapshot version exceeds after, ctx ends or the view closes.
// It always returns the latest snapshot.
func (v *View) WaitChange(ctx context.Context, after uint64) (Snapshot, error) {
	return v.Await(ctx, func(s Snapshot) bool { return s.Version > after })
}

// Await blocks until ok accepts the current snapshot.
func (v *View) Await(ctx context.Context, ok func(Snapshot) bool) (Snapshot, error) {
	for {
		v.mu.Lock()
		s, ch := v.snap, v.changed
		v.mu.Unlock()
		if ok(s) {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		case <-v.done:
			return v.Snapshot(), ErrClosed
		}
	}
}

// Close unmounts the view. It is safe to call more than once.
func (v *View) Close() {
	v.once.Do(func() {
		v.deb.Stop()
		v.detach()
		v.ref.Set(nil)
		v.cancel()
		<-v.done
	})
}

func (v *View) Closed() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

func (v *View) touch() { v.lastSeen.Store(time.Now().UnixNano()) }

func (v *View) idleSince() time.Time { return time.Unix(0, v.lastSeen.Load()) }
