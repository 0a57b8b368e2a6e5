package employee

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

// fakeStore は社員と属性の版を保持するメモリ上のストアです。
type fakeStore struct {
	employees map[int64]*Employee
	versions  map[int64]*Version
	empSeq    int64
	verSeq    int64

	// failInsert が設定された Kind への Insert は errStoreDown で失敗します。
	failInsert map[Kind]bool
}

var errStoreDown = errors.New("connection reset")

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees:  make(map[int64]*Employee),
		versions:   make(map[int64]*Version),
		failInsert: make(map[Kind]bool),
	}
}

func (f *fakeStore) snapshot() *fakeStore {
	clone := &fakeStore{
		employees:  make(map[int64]*Employee, len(f.employees)),
		versions:   make(map[int64]*Version, len(f.versions)),
		empSeq:     f.empSeq,
		verSeq:     f.verSeq,
		failInsert: f.failInsert,
	}
	for id, e := range f.employees {
		c := *e
		clone.employees[id] = &c
	}
	for id, v := range f.versions {
		c := *v
		clone.versions[id] = &c
	}
	return clone
}

func (f *fakeStore) restore(from *fakeStore) {
	f.employees = from.employees
	f.versions = from.versions
	f.empSeq = from.empSeq
	f.verSeq = from.verSeq
}

func (f *fakeStore) Create(_ context.Context, e *Employee) (*Employee, error) {
	for _, existing := range f.employees {
		if sameIdentity(existing, e) {
			return nil, ErrEmployeeAlreadyExists
		}
	}
	f.empSeq++
	c := *e
	c.ID = f.empSeq
	f.employees[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) Update(_ context.Context, e *Employee) (*Employee, error) {
	if _, ok := f.employees[e.ID]; !ok {
		return nil, ErrEmployeeNotFound
	}
	c := *e
	f.employees[e.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.employees[id]; !ok {
		return ErrEmployeeNotFound
	}
	delete(f.employees, id)
	for vid, v := range f.versions {
		if v.EmployeeID == id {
			delete(f.versions, vid)
		}
	}
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id int64) (*Employee, error) {
	e, ok := f.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	c := *e
	return &c, nil
}

func (f *fakeStore) FindByIdentity(_ context.Context, identity Identity) (*Employee, error) {
	target := &Employee{
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		BirthDate: identity.BirthDate,
		StartDate: identity.StartDate,
	}
	for _, e := range f.employees {
		if sameIdentity(e, target) {
			c := *e
			return &c, nil
		}
	}
	return nil, ErrEmployeeNotFound
}

func (f *fakeStore) List(_ context.Context) ([]*Employee, error) {
	ids := make([]int64, 0, len(f.employees))
	for id := range f.employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Employee, 0, len(ids))
	for _, id := range ids {
		c := *f.employees[id]
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeStore) FindActive(_ context.Context, employeeID int64, kind Kind) (*Version, error) {
	for _, v := range f.versions {
		if v.EmployeeID == employeeID && v.Kind == kind && v.Active {
			c := *v
			return &c, nil
		}
	}
	return nil, ErrActiveVersionNotFound
}

func (f *fakeStore) Insert(_ context.Context, v *Version) (*Version, error) {
	if f.failInsert[v.Kind] {
		return nil, errors.Join(ErrStore, errStoreDown)
	}
	if _, ok := f.employees[v.EmployeeID]; !ok {
		return nil, ErrEmployeeNotFound
	}
	if v.Active {
		for _, existing := range f.versions {
			if existing.EmployeeID == v.EmployeeID && existing.Kind == v.Kind && existing.Active {
				return nil, ErrVersionConflict
			}
		}
	}
	f.verSeq++
	c := *v
	c.ID = f.verSeq
	f.versions[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) Deactivate(_ context.Context, kind Kind, versionID int64) error {
	v, ok := f.versions[versionID]
	if !ok || v.Kind != kind || !v.Active {
		return ErrVersionConflict
	}
	v.Active = false
	return nil
}

func (f *fakeStore) UpdateStartDate(_ context.Context, kind Kind, versionID int64, startDate time.Time) (*Version, error) {
	v, ok := f.versions[versionID]
	if !ok || v.Kind != kind {
		return nil, ErrActiveVersionNotFound
	}
	v.StartDate = startDate
	c := *v
	return &c, nil
}

func (f *fakeStore) ListByEmployee(_ context.Context, employeeID int64, kind Kind) ([]*Version, error) {
	var out []*Version
	for _, v := range f.versions {
		if v.EmployeeID == employeeID && v.Kind == kind {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) versionsOf(employeeID int64, kind Kind) []*Version {
	out, _ := f.ListByEmployee(context.Background(), employeeID, kind)
	return out
}

func sameIdentity(a, b *Employee) bool {
	return a.FirstName == b.FirstName &&
		a.LastName == b.LastName &&
		a.Email == b.Email &&
		a.BirthDate.Equal(b.BirthDate) &&
		a.StartDate.Equal(b.StartDate)
}

// fakeTxManager はエラー時にストアを開始時点の状態へ戻します。入れ子の呼び出しは外側に合流します。
type fakeTxManager struct {
	store    *fakeStore
	depth    int
	begins   int
	rollback int
}

func (m *fakeTxManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.within(ctx, fn)
}

func (m *fakeTxManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return m.within(ctx, fn)
}

func (m *fakeTxManager) within(ctx context.Context, fn func(context.Context) error) error {
	if m.depth > 0 {
		return fn(ctx)
	}
	m.begins++
	m.depth++
	defer func() { m.depth-- }()

	saved := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.rollback++
		m.store.restore(saved)
		return err
	}
	return nil
}

// fakeCache はビューキャッシュのメモリ実装です。世代番号の扱いは Redis 実装と同じです。
type fakeCache struct {
	mu    sync.Mutex
	views map[int64]*View
	gens  map[int64]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: make(map[int64]*View), gens: make(map[int64]int64)}
}

func (c *fakeCache) Get(_ context.Context, id int64) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[id]
	if !ok {
		return nil, nil
	}
	out := *v
	return &out, nil
}

func (c *fakeCache) Generation(_ context.Context, id int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *fakeCache) SetIfGeneration(_ context.Context, view *View, gen int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[view.EmployeeID] != gen {
		return false, nil
	}
	out := *view
	c.views[view.EmployeeID] = &out
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.gens[id]++
		delete(c.views, id)
	}
	return nil
}

func (c *fakeCache) cached(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.views[id]
	return ok
}

// slowWriteCache は SetIfGeneration の直前で release が閉じられるまで待ちます。
type slowWriteCache struct {
	*fakeCache
	entered chan struct{}
	release chan struct{}
}

func (c *slowWriteCache) SetIfGeneration(ctx context.Context, view *View, gen int64) (bool, error) {
	c.entered <- struct{}{}
	<-c.release
	return c.fakeCache.SetIfGeneration(ctx, view, gen)
}
