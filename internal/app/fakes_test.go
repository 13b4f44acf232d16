package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/domaintest"
	"github.com/Amund211/serverstats/internal/drivers"
)

type fakeDriver struct {
	name string
	mods []int

	page      domain.PageResult
	pageErr   error
	pageCalls int

	summaries    map[int]*domain.UserStatsSummary
	summaryErr   error
	summaryCalls int

	deps drivers.Deps
}

func (d *fakeDriver) Name() string {
	return d.name
}

func (d *fakeDriver) SupportedMods() []int {
	return d.mods
}

func (d *fakeDriver) Blocks() []domain.BlockDefinition {
	return []domain.BlockDefinition{{Key: "kills", LabelRef: "stats.profile.kills", IconRef: "ph-skull"}}
}

func (d *fakeDriver) Columns() domain.SchemaDescriptor {
	return domain.SchemaDescriptor{Columns: []domain.Column{
		{Name: "name", Field: "name", Orderable: true, DefaultOrder: true},
		{Name: "kills", Field: "kills"},
	}}
}

func (d *fakeDriver) FetchPage(ctx context.Context, deps drivers.Deps, binding domain.ServerBinding, query domain.TableQuery) (domain.PageResult, error) {
	d.pageCalls++
	d.deps = deps
	if d.pageErr != nil {
		return domain.PageResult{}, d.pageErr
	}
	page := d.page
	page.DrawToken = query.DrawToken
	return page, nil
}

func (d *fakeDriver) FetchUserStats(ctx context.Context, deps drivers.Deps, serverID int, user domain.User) (*domain.UserStatsSummary, error) {
	d.summaryCalls++
	d.deps = deps
	if d.summaryErr != nil {
		return nil, d.summaryErr
	}
	return d.summaries[serverID], nil
}

type fakeRegistry struct {
	drivers  map[string]drivers.Driver
	newCalls int
}

func newFakeRegistry(ds ...*fakeDriver) *fakeRegistry {
	registry := &fakeRegistry{drivers: map[string]drivers.Driver{}}
	for _, d := range ds {
		registry.drivers[d.name] = d
	}
	return registry
}

func (r *fakeRegistry) Driver(name string, extraConfig string) (drivers.Driver, error) {
	driver, ok := r.drivers[name]
	if !ok {
		return nil, domain.ErrUnknownDriver
	}
	if extraConfig == "broken" {
		return nil, domain.ErrInvalidDriverConfig
	}
	return driver, nil
}

func (r *fakeRegistry) New(name string, extraConfig string) (drivers.Driver, error) {
	r.newCalls++
	return r.Driver(name, extraConfig)
}

func (r *fakeRegistry) ForBinding(binding domain.ServerBinding) (drivers.Driver, error) {
	return r.Driver(binding.DriverName, binding.ExtraConfig)
}

type fakeBindings struct {
	t *testing.T

	bindings map[int]domain.ServerBinding
	servers  map[int]domain.Server
	err      error

	getCalls  int
	listCalls int
	stored    []domain.ServerBinding
	deleted   []int
}

func newFakeBindings(t *testing.T, bindings ...domain.ServerBinding) *fakeBindings {
	f := &fakeBindings{
		t:        t,
		bindings: map[int]domain.ServerBinding{},
		servers:  map[int]domain.Server{},
	}
	for _, binding := range bindings {
		f.bindings[binding.Server.ID] = binding
		f.servers[binding.Server.ID] = binding.Server
	}
	return f
}

func (f *fakeBindings) GetBinding(ctx context.Context, serverID int) (domain.ServerBinding, error) {
	f.getCalls++
	if f.err != nil {
		return domain.ServerBinding{}, f.err
	}
	binding, ok := f.bindings[serverID]
	if !ok {
		return domain.ServerBinding{}, domain.ErrBindingNotFound
	}
	return binding, nil
}

func (f *fakeBindings) ListBindings(ctx context.Context) ([]domain.ServerBinding, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	result := []domain.ServerBinding{}
	for id := 1; id <= 100; id++ {
		if binding, ok := f.bindings[id]; ok {
			result = append(result, binding)
		}
	}
	return result, nil
}

func (f *fakeBindings) GetServer(ctx context.Context, serverID int) (domain.Server, error) {
	server, ok := f.servers[serverID]
	if !ok {
		return domain.Server{}, domain.ErrServerNotFound
	}
	return server, nil
}

func (f *fakeBindings) StoreBinding(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error) {
	f.t.Helper()
	require.Contains(f.t, f.servers, binding.Server.ID)

	binding.ID = len(f.stored) + 1
	binding.Server = f.servers[binding.Server.ID]
	f.stored = append(f.stored, binding)
	f.bindings[binding.Server.ID] = binding
	return binding, nil
}

func (f *fakeBindings) UpdateBinding(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error) {
	existing, ok := f.bindings[binding.Server.ID]
	if !ok {
		return domain.ServerBinding{}, domain.ErrBindingNotFound
	}
	binding.ID = existing.ID
	binding.Server = existing.Server
	f.bindings[binding.Server.ID] = binding
	return binding, nil
}

func (f *fakeBindings) DeleteBinding(ctx context.Context, serverID int) error {
	if _, ok := f.bindings[serverID]; !ok {
		return domain.ErrBindingNotFound
	}
	delete(f.bindings, serverID)
	f.deleted = append(f.deleted, serverID)
	return nil
}

type fakeUsers struct {
	users map[int]domain.User
	calls int
}

func (f *fakeUsers) GetUser(ctx context.Context, userID int) (domain.User, error) {
	f.calls++
	user, ok := f.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

type fakeDatabases map[string]bool

func (f fakeDatabases) Has(ref string) bool {
	return f[ref]
}

func cs2Binding(serverID int, driverName string) domain.ServerBinding {
	return domaintest.NewBindingBuilder(serverID, driverName).Build()
}
