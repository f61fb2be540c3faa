package resource

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestManager(t *testing.T, loader Loader, opts ...Option) *Manager {
	t.Helper()
	fsys := fstest.MapFS{
		"cube.mesh":   {Data: []byte("cube")},
		"sphere.mesh": {Data: []byte("sphere")},
		"torus.mesh":  {Data: []byte("torus")},
		"broken.mesh": {Data: []byte("fail")},
	}
	base := []Option{
		WithFS(fsys),
		WithLoader("mesh", loader),
		WithWorkers(2),
	}
	m := NewManager(append(base, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRegister(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	obj := &mesh{name: "cube"}

	h, err := Register(m, obj)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !h.IsResolved() || h.MustGet() != obj {
		t.Error("registered handle not resolved to the object")
	}
	if h.UUID() == "" {
		t.Error("registered handle has no uuid")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	got, ok := Lookup[*mesh](m, h.UUID())
	if !ok || !SameIdentity(got, h) {
		t.Error("Lookup() did not return the registered identity")
	}
}

func TestRegister_Nil(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	if _, err := Register[*mesh](m, nil); !errors.Is(err, ErrNilResource) {
		t.Errorf("Register(nil) error = %v, want ErrNilResource", err)
	}
}

func TestAdopt(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	obj := &mesh{name: "cube"}
	h := New(obj)
	keep := h.Base()

	if _, err := Adopt(m, h); err != nil {
		t.Fatalf("Adopt() error = %v", err)
	}
	if !keep.IsResolved() {
		t.Error("copy taken before Adopt did not observe resolution")
	}
	if _, err := Adopt(m, h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("second Adopt() error = %v, want ErrInvalidHandle", err)
	}
}

func TestLoad(t *testing.T) {
	loader := &meshLoader{}
	m := newTestManager(t, loader)
	ctx := context.Background()

	h1, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := h1.MustGet().name; got != "cube" {
		t.Errorf("name = %q, want cube", got)
	}

	if _, err := Load[*mesh](ctx, m, "./cube.mesh"); err == nil {
		t.Fatal("Load(./cube.mesh) accepted a non-canonical path")
	}
	h2, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if !SameIdentity(h1, h2) {
		t.Error("loading one path twice created two identities")
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
}

func TestLoad_Errors(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		want error
	}{
		{"no loader", "cube.obj", ErrNoLoader},
		{"missing file", "missing.mesh", fs.ErrNotExist},
		{"loader failure", "broken.mesh", errBadMesh},
		{"invalid path", "../cube.mesh", fs.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load[*mesh](ctx, m, tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load(%q) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestLoad_FailureRecordedOnHandle(t *testing.T) {
	m := newTestManager(t, &meshLoader{})

	h, err := Load[*mesh](context.Background(), m, "broken.mesh")
	if err == nil {
		t.Fatal("Load() succeeded, want error")
	}
	if h.IsResolved() {
		t.Error("failed load resolved the handle")
	}
	if !errors.Is(h.Err(), errBadMesh) {
		t.Errorf("Err() = %v, want errBadMesh", h.Err())
	}
}

func TestLoad_TypeMismatch(t *testing.T) {
	m := newTestManager(t, &meshLoader{})

	h, err := Load[*clip](context.Background(), m, "cube.mesh")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Load[*clip]() error = %v, want ErrTypeMismatch", err)
	}
	// The identity is still loaded and usable with the right type.
	if _, err := Cast[*mesh](h); err != nil {
		t.Errorf("Cast[*mesh]() error = %v", err)
	}
}

func TestLoadAsync(t *testing.T) {
	loader := &meshLoader{gate: make(chan struct{})}
	m := newTestManager(t, loader)

	h := LoadAsync[*mesh](m, "sphere.mesh")
	if h.IsResolved() {
		t.Fatal("LoadAsync() returned a resolved handle before the load ran")
	}
	if h.UUID() == "" {
		t.Error("pending handle has no uuid")
	}

	again := LoadAsync[*mesh](m, "sphere.mesh")
	if !SameIdentity(h, again) {
		t.Error("LoadAsync() of a pending path created a new identity")
	}

	close(loader.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obj, err := again.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if obj.name != "sphere" {
		t.Errorf("name = %q, want sphere", obj.name)
	}
	if !h.IsResolved() {
		t.Error("first handle did not observe resolution")
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
}

func TestLoadAsync_Failure(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := LoadAsync[*mesh](m, "broken.mesh")
	if _, err := h.Wait(ctx); !errors.Is(err, errBadMesh) {
		t.Errorf("Wait() error = %v, want errBadMesh", err)
	}

	bad := LoadAsync[*mesh](m, "cube.obj")
	if _, err := bad.Wait(ctx); !errors.Is(err, ErrNoLoader) {
		t.Errorf("Wait() error = %v, want ErrNoLoader", err)
	}
}

func TestLoad_JoinsPendingAsyncLoad(t *testing.T) {
	loader := &meshLoader{gate: make(chan struct{})}
	m := newTestManager(t, loader)

	h := LoadAsync[*mesh](m, "torus.mesh")

	done := make(chan error, 1)
	go func() {
		_, err := Load[*mesh](context.Background(), m, "torus.mesh")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(loader.gate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Load() did not return")
	}
	if !h.IsResolved() {
		t.Error("async handle not resolved")
	}
	if n := loader.calls.Load(); n > 2 {
		t.Errorf("loader calls = %d, want at most 2", n)
	}
}

func TestLoadAll(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	names := []string{"cube.mesh", "sphere.mesh", "torus.mesh"}

	hs, err := LoadAll[*mesh](context.Background(), m, names...)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	for i, h := range hs {
		if got := h.MustGet().name + ".mesh"; got != names[i] {
			t.Errorf("handle %d = %q, want %q", i, got, names[i])
		}
	}

	if _, err := LoadAll[*mesh](context.Background(), m, "cube.mesh", "broken.mesh"); !errors.Is(err, errBadMesh) {
		t.Errorf("LoadAll() error = %v, want errBadMesh", err)
	}
}

func TestRebind(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	h, err := Load[*mesh](context.Background(), m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}

	b, err := h.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var restored Handle[*mesh]
	if err := restored.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}

	bound, err := Rebind(m, restored)
	if err != nil {
		t.Fatalf("Rebind() error = %v", err)
	}
	if !SameIdentity(bound, h) || !Equal(bound, h) {
		t.Error("Rebind() did not return the canonical block")
	}

	if _, err := Rebind(m, Handle[*mesh]{}); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("Rebind(empty) error = %v, want ErrUnknownResource", err)
	}
}

func TestReload(t *testing.T) {
	loader := &meshLoader{}
	m := newTestManager(t, loader)
	ctx := context.Background()

	h, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}
	old := h.MustGet()

	if err := m.Reload(ctx, h.UUID()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	cur := h.MustGet()
	if cur == old {
		t.Error("Reload() did not swap the object")
	}
	if cur.version != 2 {
		t.Errorf("version = %d, want 2", cur.version)
	}
	if old.unloads.Load() != 1 {
		t.Errorf("old object unloads = %d, want 1", old.unloads.Load())
	}
	if !h.IsResolved() {
		t.Error("handle unresolved after reload")
	}
}

func TestReload_Errors(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	ctx := context.Background()

	if err := m.Reload(ctx, "nope"); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("Reload(unknown) error = %v, want ErrUnknownResource", err)
	}

	h, err := Register(m, &mesh{name: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(ctx, h.UUID()); !errors.Is(err, ErrNoLoader) {
		t.Errorf("Reload(registered) error = %v, want ErrNoLoader", err)
	}
}

func TestReload_Concurrent(t *testing.T) {
	loader := &meshLoader{}
	m := newTestManager(t, loader)
	ctx := context.Background()

	h, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Reload(ctx, h.UUID()); err != nil {
				t.Errorf("Reload() error = %v", err)
			}
			if !h.IsResolved() {
				t.Error("handle observed unresolved during reload")
			}
		}()
	}
	wg.Wait()
}

func TestUnloadAndRelease(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	ctx := context.Background()

	h, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}
	obj := h.MustGet()

	if err := m.Unload(h.UUID()); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if obj.unloads.Load() != 1 {
		t.Errorf("unloads = %d, want 1", obj.unloads.Load())
	}
	if !h.IsResolved() {
		t.Error("Unload() cleared resolution")
	}

	if err := m.Release(h.UUID()); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() after Release = %d, want 0", m.Len())
	}
	if _, ok := Lookup[*mesh](m, h.UUID()); ok {
		t.Error("released identity still tracked")
	}
	if err := m.Release(h.UUID()); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("second Release() error = %v, want ErrUnknownResource", err)
	}

	// A released path gets a new identity.
	h2, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}
	if SameIdentity(h, h2) {
		t.Error("released path reused the old identity")
	}
}

func TestUnload_ThenLoad(t *testing.T) {
	loader := &meshLoader{}
	m := newTestManager(t, loader)
	ctx := context.Background()

	h, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}
	first := h.MustGet()
	if err := m.Unload(h.UUID()); err != nil {
		t.Fatal(err)
	}
	if err := m.Unload(h.UUID()); err != nil {
		t.Errorf("second Unload() error = %v", err)
	}
	if first.unloads.Load() != 1 {
		t.Errorf("unloads = %d, want 1", first.unloads.Load())
	}

	h2, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatalf("Load() after Unload error = %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls.Load())
	}
	if !SameIdentity(h, h2) || h2.UUID() != h.UUID() {
		t.Error("Load() after Unload changed the identity")
	}
	second := h.MustGet()
	if second == first || second.version != 2 {
		t.Errorf("handle resolves to version %d, want a fresh object", second.version)
	}

	// A loaded object is not reloaded again.
	if _, err := Load[*mesh](ctx, m, "cube.mesh"); err != nil {
		t.Fatal(err)
	}
	if loader.calls.Load() != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls.Load())
	}

	// Release does not unload the old object a second time.
	if err := m.Unload(h.UUID()); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(h.UUID()); err != nil {
		t.Fatal(err)
	}
	if second.unloads.Load() != 1 {
		t.Errorf("unloads after Release = %d, want 1", second.unloads.Load())
	}
}

func TestUnload_ThenLoadAsync(t *testing.T) {
	loader := &meshLoader{}
	m := newTestManager(t, loader)
	ctx := context.Background()

	h, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Unload(h.UUID()); err != nil {
		t.Fatal(err)
	}

	first := h.MustGet()
	h2 := LoadAsync[*mesh](m, "cube.mesh")
	deadline := time.Now().Add(5 * time.Second)
	for h2.MustGet() == first {
		if time.Now().After(deadline) {
			t.Fatal("LoadAsync() after Unload did not load a fresh object")
		}
		time.Sleep(time.Millisecond)
	}
	if loader.calls.Load() != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls.Load())
	}
}

func TestUnload_Unresolved(t *testing.T) {
	loader := &meshLoader{gate: make(chan struct{})}
	m := newTestManager(t, loader)
	t.Cleanup(func() { close(loader.gate) })

	h := LoadAsync[*mesh](m, "cube.mesh")
	if err := m.Unload(h.UUID()); !errors.Is(err, ErrNotResolved) {
		t.Errorf("Unload(pending) error = %v, want ErrNotResolved", err)
	}
}

func TestClose(t *testing.T) {
	loader := &meshLoader{gate: make(chan struct{})}
	m := newTestManager(t, loader, WithWorkers(1))

	pending := LoadAsync[*mesh](m, "cube.mesh")

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pending.Wait(ctx); err == nil {
		t.Error("pending handle resolved after Close")
	}

	if _, err := Load[*mesh](ctx, m, "sphere.mesh"); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close error = %v, want ErrClosed", err)
	}
	if _, err := Register(m, &mesh{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Register after Close error = %v, want ErrClosed", err)
	}
	h := LoadAsync[*mesh](m, "torus.mesh")
	if !errors.Is(h.Err(), ErrClosed) {
		t.Errorf("LoadAsync after Close Err() = %v, want ErrClosed", h.Err())
	}
}

func TestIDs(t *testing.T) {
	m := newTestManager(t, &meshLoader{})
	for _, name := range []string{"torus.mesh", "cube.mesh"} {
		if _, err := Load[*mesh](context.Background(), m, name); err != nil {
			t.Fatal(err)
		}
	}
	ids := m.IDs()
	if len(ids) != 2 || ids[0] > ids[1] {
		t.Errorf("IDs() = %v, want 2 sorted ids", ids)
	}
}

func TestManagerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newTestManager(t, &meshLoader{}, WithRegisterer(reg), WithNamespace("test"))
	ctx := context.Background()

	h, err := Load[*mesh](ctx, m, "cube.mesh")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = Load[*mesh](ctx, m, "broken.mesh")
	if err := m.Unload(h.UUID()); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.metrics.loadsTotal.WithLabelValues(resultSuccess)); got != 1 {
		t.Errorf("loads_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.metrics.loadsTotal.WithLabelValues(resultFailure)); got != 1 {
		t.Errorf("loads_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.metrics.resources); got != 2 {
		t.Errorf("resources = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.metrics.unloadsTotal); got != 1 {
		t.Errorf("unloads_total = %v, want 1", got)
	}

	n, err := testutil.GatherAndCount(reg, "test_resource_load_duration_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("load_duration_seconds series = %d, want 1", n)
	}
}

func TestManagerMetrics_FailedUnload(t *testing.T) {
	m := newTestManager(t, &meshLoader{})

	h, err := Register(m, &mesh{name: "stuck", unloadErr: errBadMesh})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Unload(h.UUID()); !errors.Is(err, errBadMesh) {
		t.Errorf("Unload() error = %v, want errBadMesh", err)
	}
	if err := m.Release(h.UUID()); !errors.Is(err, errBadMesh) {
		t.Errorf("Release() error = %v, want errBadMesh", err)
	}
	if got := testutil.ToFloat64(m.metrics.unloadsTotal); got != 0 {
		t.Errorf("unloads_total = %v, want 0", got)
	}
}

func TestManager_UnregisteredMetrics(t *testing.T) {
	// Two managers without a registerer must not collide.
	a := newTestManager(t, &meshLoader{})
	b := newTestManager(t, &meshLoader{})
	if a.metrics == b.metrics {
		t.Error("managers share metrics")
	}
}

func TestWithLoader_Extension(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"png", ".png"},
		{".PNG", ".png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeExt(tt.in); got != tt.want {
			t.Errorf("normalizeExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
