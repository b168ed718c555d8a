package access

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStore counts reads so tests can assert which paths touched it.
type fakeStore struct {
	principalsByName map[string]*Principal
	groupPerms       map[string][]string
	failPerms        bool

	findCalls      int
	listGroupCalls int
	listPermCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		principalsByName: make(map[string]*Principal),
		groupPerms:       make(map[string][]string),
	}
}

func (f *fakeStore) FindPrincipalByName(ctx context.Context, name string) (*Principal, error) {
	f.findCalls++
	p, ok := f.principalsByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) FindPrincipalByID(ctx context.Context, id string) (*Principal, error) {
	f.findCalls++
	for _, p := range f.principalsByName {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListGrantGroups(ctx context.Context, principalID string) ([]GrantGroup, error) {
	f.listGroupCalls++
	for _, p := range f.principalsByName {
		if p.ID == principalID {
			return p.Groups, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListPermissionNames(ctx context.Context, groupID string) ([]string, error) {
	f.listPermCalls++
	if f.failPerms {
		return nil, errors.New("store down")
	}
	names, ok := f.groupPerms[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	return names, nil
}

func testPrincipal(id, name string, groups ...GrantGroup) *Principal {
	return &Principal{ID: id, Name: name, Active: true, Groups: groups}
}

func TestResolveUnionsGroupPermissions(t *testing.T) {
	store := newFakeStore()
	store.groupPerms["profile:a"] = []string{"x", "y"}
	store.groupPerms["role:b"] = []string{"y", "z"}
	p := testPrincipal("u1", "jdoe",
		GrantGroup{ID: "profile:a", Name: "Readers"},
		GrantGroup{ID: "role:b", Name: "Writers"})

	r, err := NewResolver(store, NewCache(newFakeKV(), time.Hour))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	set, err := r.Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"x", "y", "z"}
	got := set.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestResolveFullAccessShortCircuits(t *testing.T) {
	store := newFakeStore()
	kv := newFakeKV()
	p := testPrincipal("u1", "administrator", GrantGroup{ID: "profile:admin", Name: FullAccessGroup})

	r, err := NewResolver(store, NewCache(kv, time.Hour))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	set, err := r.Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !set.Has(PermAllAccess) {
		t.Fatalf("expected universal marker, got %v", set.Names())
	}
	if store.listGroupCalls != 0 || store.listPermCalls != 0 || store.findCalls != 0 {
		t.Fatalf("full-access resolution must not touch the store: %+v", store)
	}
	if kv.gets != 0 || kv.sets != 0 {
		t.Fatalf("full-access resolution must not touch the cache: gets=%d sets=%d", kv.gets, kv.sets)
	}
}

func TestResolveSecondCallServedFromCache(t *testing.T) {
	store := newFakeStore()
	store.groupPerms["profile:a"] = []string{"users:read"}
	p := testPrincipal("u1", "jdoe", GrantGroup{ID: "profile:a", Name: "Readers"})

	r, err := NewResolver(store, NewCache(newFakeKV(), time.Hour))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	ctx := context.Background()

	first, err := r.Resolve(ctx, p)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if store.listPermCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.listPermCalls)
	}

	second, err := r.Resolve(ctx, p)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if store.listPermCalls != 1 {
		t.Fatalf("second resolve must be cache-served, store reads=%d", store.listPermCalls)
	}
	if len(first.Names()) != len(second.Names()) || !second.Has("users:read") {
		t.Fatalf("resolve not idempotent: %v vs %v", first.Names(), second.Names())
	}
}

func TestResolveSharedGroupYieldsIdenticalResults(t *testing.T) {
	store := newFakeStore()
	store.groupPerms["profile:shared"] = []string{"modules:read"}
	a := testPrincipal("u1", "alice", GrantGroup{ID: "profile:shared", Name: "Shared"})
	b := testPrincipal("u2", "bob", GrantGroup{ID: "profile:shared", Name: "Shared"})

	r, err := NewResolver(store, NewCache(newFakeKV(), time.Hour))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	ctx := context.Background()

	setA, err := r.Resolve(ctx, a)
	if err != nil {
		t.Fatalf("Resolve(alice): %v", err)
	}
	setB, err := r.Resolve(ctx, b)
	if err != nil {
		t.Fatalf("Resolve(bob): %v", err)
	}
	if setA.Has("modules:read") != setB.Has("modules:read") {
		t.Fatalf("principals sharing a group diverged: %v vs %v", setA.Names(), setB.Names())
	}
}

func TestResolveAfterDropGroupReReadsStore(t *testing.T) {
	store := newFakeStore()
	store.groupPerms["profile:a"] = []string{"users:read"}
	p := testPrincipal("u1", "jdoe", GrantGroup{ID: "profile:a", Name: "Readers"})

	cache := NewCache(newFakeKV(), time.Hour)
	r, err := NewResolver(store, cache)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	ctx := context.Background()

	if _, err := r.Resolve(ctx, p); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// A CRUD collaborator changes the group's permissions and drops it.
	store.groupPerms["profile:a"] = []string{"users:read", "users:write"}
	if err := cache.DropGroup(ctx, "profile:a"); err != nil {
		t.Fatalf("DropGroup: %v", err)
	}

	reads := store.listPermCalls
	set, err := r.Resolve(ctx, p)
	if err != nil {
		t.Fatalf("Resolve after drop: %v", err)
	}
	if store.listPermCalls != reads+1 {
		t.Fatalf("expected a fresh store read after invalidation")
	}
	if !set.Has("users:write") {
		t.Fatalf("resolution did not reflect the permission change: %v", set.Names())
	}
}

func TestResolveStoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.failPerms = true
	p := testPrincipal("u1", "jdoe", GrantGroup{ID: "profile:a", Name: "Readers"})

	r, err := NewResolver(store, NewCache(newFakeKV(), time.Hour))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	if _, err := r.Resolve(context.Background(), p); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResolveDegradesWithoutCache(t *testing.T) {
	store := newFakeStore()
	store.groupPerms["profile:a"] = []string{"users:read"}
	p := testPrincipal("u1", "jdoe", GrantGroup{ID: "profile:a", Name: "Readers"})

	kv := newFakeKV()
	kv.fail = true
	r, err := NewResolver(store, NewCache(kv, time.Hour))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		set, err := r.Resolve(ctx, p)
		if err != nil {
			t.Fatalf("Resolve with cache down: %v", err)
		}
		if !set.Has("users:read") {
			t.Fatalf("unexpected set: %v", set.Names())
		}
	}
	if store.listPermCalls != 2 {
		t.Fatalf("expected direct store reads while cache is down, got %d", store.listPermCalls)
	}
}

func TestResolveLoadsGroupsWhenAbsent(t *testing.T) {
	store := newFakeStore()
	store.groupPerms["role:b"] = []string{"modules:write"}
	p := &Principal{ID: "u1", Name: "jdoe", Active: true}
	store.principalsByName["jdoe"] = &Principal{
		ID: "u1", Name: "jdoe", Active: true,
		Groups: []GrantGroup{{ID: "role:b", Name: "Writers"}},
	}

	r, err := NewResolver(store, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	set, err := r.Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if store.listGroupCalls != 1 {
		t.Fatalf("expected group fallback load, calls=%d", store.listGroupCalls)
	}
	if !set.Has("modules:write") {
		t.Fatalf("unexpected set: %v", set.Names())
	}
}
