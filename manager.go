package resource

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/gogpu/resource/internal/parallel"
)

// Manager is the authority over resource identities.
//
// It is the only component allowed to assign a uuid to a handle data block
// and to resolve it. Every identity it tracks has exactly one block, so all
// handles it hands out for one path or uuid observe the same resolution.
//
// Thread safety: Manager is safe for concurrent use.
type Manager struct {
	fsys    fs.FS
	loaders map[string]Loader
	workers int
	pool    *parallel.WorkerPool
	metrics *metrics
	flight  singleflight.Group

	// ctx is cancelled by Close and passed to background loads.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry // by uuid
	paths   map[string]string // path -> uuid
	closed  bool
}

// entry is one tracked identity.
type entry struct {
	data *handleData
	path string // empty for registered in-memory resources

	// unloaded is set by Unload and cleared when a load resolves the block
	// again. The block stays resolved with the unloaded object meanwhile.
	unloaded atomic.Bool
}

// NewManager creates a manager and starts its load workers.
func NewManager(opts ...Option) *Manager {
	o := defaultManagerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := parallel.NewWorkerPool(o.workers)

	m := &Manager{
		fsys:    o.fsys,
		loaders: o.loaders,
		workers: pool.Workers(),
		pool:    pool,
		metrics: newMetrics(o.namespace, o.registerer),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		paths:   make(map[string]string),
	}

	Logger().Debug("resource: manager created", "workers", m.workers, "loaders", len(m.loaders))
	return m
}

// Register gives r a new identity and resolves it immediately.
func Register[T Resource](m *Manager, r T) (Handle[T], error) {
	return Adopt(m, New(r))
}

// Adopt takes over a handle created with New: it assigns an identity and
// resolves the block with the object the handle was created from.
// Adopting a handle that already has an identity returns ErrInvalidHandle.
func Adopt[T Resource](m *Manager, h Handle[T]) (Handle[T], error) {
	if h.data == nil {
		return Handle[T]{}, ErrNilResource
	}
	s := h.data.snapshot()
	if isNil(s.ptr) {
		return Handle[T]{}, ErrNilResource
	}

	id := uuid.NewString()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Handle[T]{}, ErrClosed
	}
	if cur := h.data.id(); cur != "" {
		m.mu.Unlock()
		return Handle[T]{}, fmt.Errorf("%w: already has identity %s", ErrInvalidHandle, cur)
	}
	h.data.setUUID(id)
	m.entries[id] = &entry{data: h.data}
	m.mu.Unlock()

	h.data.resolve(s.ptr)
	m.metrics.resources.Inc()

	Logger().Debug("resource: registered", "uuid", id, "type", s.ptr.TypeInfo().Name)
	return h, nil
}

// Load loads the resource at name synchronously and returns its handle.
//
// A name that was loaded before maps to the same identity. A previous
// failure is retried, and a resource released with Unload is loaded again. If a background load for name is running, Load joins it.
func Load[T Resource](ctx context.Context, m *Manager, name string) (Handle[T], error) {
	e, _, err := m.entryFor(name)
	if err != nil {
		return Handle[T]{}, err
	}

	h := Handle[T]{data: e.data}
	if err := m.load(ctx, e); err != nil {
		return h, err
	}
	if _, err := h.Get(); err != nil {
		return h, err
	}
	return h, nil
}

// LoadAsync returns the handle for name at once and loads it on the worker
// pool. Use Handle.Wait, IsResolved or Err to observe the outcome.
//
// Errors that occur before a load is scheduled (unknown extension, closed
// manager) are recorded on a detached handle.
//
// LoadAsync blocks only when the load queue is full.
func LoadAsync[T Resource](m *Manager, name string) Handle[T] {
	e, created, err := m.entryFor(name)
	if err != nil {
		d := newHandleData(nil)
		d.fail(err)
		return Handle[T]{data: d}
	}

	h := Handle[T]{data: e.data}
	s := e.data.snapshot()
	switch {
	case s.resolved && !e.unloaded.Load():
		return h
	case !s.resolved && !created && s.err == nil:
		// A load is already on its way.
		return h
	}

	if !m.pool.Submit(func() { _ = m.load(m.ctx, e) }) {
		e.data.fail(ErrClosed)
	}
	return h
}

// LoadAll loads names concurrently, at most one load per worker at a time.
// Handles are returned in the order of names; on failure the first error is
// returned and the remaining handles may be unresolved.
func LoadAll[T Resource](ctx context.Context, m *Manager, names ...string) ([]Handle[T], error) {
	handles := make([]Handle[T], len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, name := range names {
		g.Go(func() error {
			h, err := Load[T](gctx, m, name)
			handles[i] = h
			return err
		})
	}
	return handles, g.Wait()
}

// Lookup returns the handle tracked under id.
func Lookup[T Resource](m *Manager, id string) (Handle[T], bool) {
	e := m.entry(id)
	if e == nil {
		return Handle[T]{}, false
	}
	return Handle[T]{data: e.data}, true
}

// Rebind maps a detached handle, typically one restored with
// UnmarshalJSON, to the manager's shared block for the same uuid.
func Rebind[T Resource](m *Manager, h Handle[T]) (Handle[T], error) {
	id := h.UUID()
	if id == "" {
		return Handle[T]{}, fmt.Errorf("%w: handle has no uuid", ErrUnknownResource)
	}
	e := m.entry(id)
	if e == nil {
		return Handle[T]{}, fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	return Handle[T]{data: e.data}, nil
}

// Reload runs the loader for id again and resolves the block with the new
// object. The previous object is unloaded. If the load fails the block keeps
// the previous object and records the failure.
//
// Concurrent reloads of one identity share a single load.
func (m *Manager) Reload(ctx context.Context, id string) error {
	e := m.entry(id)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	if e.path == "" {
		return fmt.Errorf("%w: %s was registered without a source", ErrNoLoader, id)
	}

	_, err, _ := m.flight.Do("reload:"+id, func() (any, error) {
		old := e.data.snapshot().ptr
		wasUnloaded := e.unloaded.Load()
		r, err := m.loadEntry(ctx, e)
		if err != nil {
			return nil, err
		}
		if !isNil(old) && !sameObject(old, r) && !wasUnloaded {
			if err := old.Unload(); err != nil {
				Logger().Warn("resource: unload of replaced object failed", "uuid", id, "err", err)
			} else {
				m.metrics.unloadsTotal.Inc()
			}
		}
		Logger().Debug("resource: reloaded", "uuid", id, "path", e.path)
		return nil, nil
	})
	return err
}

// Unload releases the backend storage of the resource tracked under id.
// The identity and its handles stay resolved; the next Load, LoadAsync or
// Reload of the identity brings the data back. Unloading twice is a no-op.
func (m *Manager) Unload(id string) error {
	e := m.entry(id)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	s := e.data.snapshot()
	if !s.resolved || isNil(s.ptr) {
		return ErrNotResolved
	}
	if e.unloaded.Load() {
		return nil
	}

	if err := s.ptr.Unload(); err != nil {
		return fmt.Errorf("resource: unload %s: %w", id, err)
	}
	e.unloaded.Store(true)
	m.metrics.unloadsTotal.Inc()
	Logger().Debug("resource: unloaded", "uuid", id)
	return nil
}

// Release unloads the resource and forgets the identity. Handles that are
// still held keep their block but the manager no longer tracks it.
func (m *Manager) Release(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
		if e.path != "" {
			delete(m.paths, e.path)
		}
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	m.metrics.resources.Dec()

	s := e.data.snapshot()
	if !s.resolved || isNil(s.ptr) || e.unloaded.Load() {
		return nil
	}
	if err := s.ptr.Unload(); err != nil {
		Logger().Warn("resource: released with error", "uuid", id, "err", err)
		return fmt.Errorf("resource: release %s: %w", id, err)
	}
	m.metrics.unloadsTotal.Inc()
	Logger().Debug("resource: released", "uuid", id)
	return nil
}

// Len returns the number of tracked identities.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// IDs returns the tracked uuids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Close stops the load workers. Queued loads still run but see a cancelled
// context; handles that remain pending afterwards fail with ErrClosed.
// Resolved resources are not unloaded. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.pool.Close()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if s := e.data.snapshot(); !s.resolved && s.err == nil {
			e.data.fail(ErrClosed)
		}
	}

	Logger().Info("resource: manager closed", "resources", len(m.entries))
	return nil
}

func (m *Manager) entry(id string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[id]
}

// entryFor returns the entry for name, creating one if needed.
func (m *Manager) entryFor(name string) (*entry, bool, error) {
	if !fs.ValidPath(name) {
		return nil, false, fmt.Errorf("resource: load %q: %w", name, fs.ErrInvalid)
	}
	name = path.Clean(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrClosed
	}
	if id, ok := m.paths[name]; ok {
		return m.entries[id], false, nil
	}
	if _, ok := m.loaders[normalizeExt(path.Ext(name))]; !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrNoLoader, path.Ext(name))
	}

	id := uuid.NewString()
	d := newHandleData(nil)
	d.setUUID(id)
	e := &entry{data: d, path: name}
	m.entries[id] = e
	m.paths[name] = id
	m.metrics.resources.Inc()

	Logger().Debug("resource: handle created", "uuid", id, "path", name)
	return e, true, nil
}

// load brings e to the resolved state unless it already is and its object
// was not unloaded. Concurrent loads of one identity share a single loader
// call.
func (m *Manager) load(ctx context.Context, e *entry) error {
	_, err, _ := m.flight.Do(e.data.id(), func() (any, error) {
		s := e.data.snapshot()
		if s.resolved && !e.unloaded.Load() {
			return nil, nil
		}
		_, err := m.loadEntry(ctx, e)
		return nil, err
	})
	if err != nil {
		return err
	}
	// A joined load may have failed for another caller.
	if s := e.data.snapshot(); s.err != nil && (!s.resolved || e.unloaded.Load()) {
		return s.err
	}
	return nil
}

// loadEntry runs the loader and publishes the outcome on the block.
func (m *Manager) loadEntry(ctx context.Context, e *entry) (Resource, error) {
	id := e.data.id()
	loader := m.loaderFor(e.path)
	if loader == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoLoader, path.Ext(e.path))
	}

	e.data.clearErr()

	start := time.Now()
	r, err := loader.Load(ctx, m.fsys, e.path)
	if err == nil && isNil(r) {
		err = ErrNilResource
	}
	m.metrics.observeLoad(time.Since(start), err)

	if err != nil {
		err = fmt.Errorf("resource: load %s: %w", e.path, err)
		Logger().Warn("resource: load failed", "uuid", id, "path", e.path, "err", err)
		e.data.fail(err)
		return nil, err
	}

	if m.entry(id) != e {
		// Released while loading.
		if uerr := r.Unload(); uerr != nil {
			Logger().Warn("resource: unload of released object failed", "uuid", id, "err", uerr)
		}
		err := fmt.Errorf("%w: %s released during load", ErrUnknownResource, id)
		e.data.fail(err)
		return nil, err
	}

	e.data.resolve(r)
	e.unloaded.Store(false)
	Logger().Debug("resource: resolved", "uuid", id, "path", e.path, "size", r.Size())
	return r, nil
}

func (m *Manager) loaderFor(name string) Loader {
	return m.loaders[normalizeExt(path.Ext(name))]
}
