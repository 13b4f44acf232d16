package drivers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/tablequery"
)

type stubDatabases struct {
	t     *testing.T
	db    *sqlx.DB
	err   error
	calls int
}

func (s *stubDatabases) Database(ctx context.Context, ref string) (*sqlx.DB, tablequery.Dialect, error) {
	s.t.Helper()
	s.calls++
	require.Equal(s.t, "stats", ref)
	if s.err != nil {
		return nil, tablequery.Dialect{}, s.err
	}
	return s.db, tablequery.SQLite, nil
}

type stubResolver struct {
	t        *testing.T
	known    map[string]domain.ResolvedIdentity
	err      error
	calls    int
	received [][]string
}

func (s *stubResolver) resolve(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error) {
	s.t.Helper()
	s.calls++
	s.received = append(s.received, slices.Clone(steamIDs))
	if s.err != nil {
		return nil, s.err
	}

	result := map[string]domain.ResolvedIdentity{}
	for _, id := range steamIDs {
		if identity, ok := s.known[id]; ok {
			result[id] = identity
		}
	}
	return result, nil
}

type stubLinks struct{}

func (stubLinks) RankAsset(ranksSet string, rank int) string {
	return fmt.Sprintf("https://cdn.example.com/assets/ranks/%s/%d.webp", ranksSet, rank)
}

func (stubLinks) Profile(steamID string) string {
	return "https://example.com/profile/search/" + steamID
}

type stubBindings struct {
	t       *testing.T
	binding domain.ServerBinding
	err     error
	calls   int
}

func (s *stubBindings) get(ctx context.Context, driverName string, serverID int) (domain.ServerBinding, error) {
	s.t.Helper()
	s.calls++
	if s.err != nil {
		return domain.ServerBinding{}, s.err
	}
	require.Equal(s.t, s.binding.DriverName, driverName)
	require.Equal(s.t, s.binding.Server.ID, serverID)
	return s.binding, nil
}

type testEnv struct {
	databases *stubDatabases
	resolver  *stubResolver
	bindings  *stubBindings
	deps      Deps
	binding   domain.ServerBinding
}

func newTestEnv(t *testing.T, db *sqlx.DB, driverName string) *testEnv {
	t.Helper()

	binding := domain.ServerBinding{
		ID:          1,
		DriverName:  driverName,
		DatabaseRef: "stats",
		Server:      domain.Server{ID: 7, Name: "Public #1", Address: "203.0.113.10:27015", Mod: domain.ModCS2},
	}

	env := &testEnv{
		databases: &stubDatabases{t: t, db: db},
		resolver:  &stubResolver{t: t, known: map[string]domain.ResolvedIdentity{}},
		bindings:  &stubBindings{t: t, binding: binding},
		binding:   binding,
	}
	env.deps = Deps{
		Databases:  env.databases,
		GetBinding: env.bindings.get,
		Identities: env.resolver.resolve,
		Links:      stubLinks{},
		DateFormat: "2006-01-02 15:04",
	}
	return env
}

func newSQLite(t *testing.T, schema ...string) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, statement := range schema {
		db.MustExec(statement)
	}
	return db
}

func allColumns(schema domain.SchemaDescriptor) []domain.ColumnSpec {
	specs := make([]domain.ColumnSpec, len(schema.Columns))
	for i, column := range schema.Columns {
		specs[i] = domain.ColumnSpec{
			Name:       column.Name,
			Searchable: column.Name != "",
			Orderable:  column.Name != "",
		}
	}
	return specs
}

func pageQuery(schema domain.SchemaDescriptor, page, pageSize int) domain.TableQuery {
	return domain.TableQuery{
		Page:      page,
		PageSize:  pageSize,
		DrawToken: "3",
		Columns:   allColumns(schema),
	}
}

func columnIndex(t *testing.T, schema domain.SchemaDescriptor, name string) int {
	t.Helper()
	for i, column := range schema.Columns {
		if column.Name == name {
			return i
		}
	}
	t.Fatalf("no column %s", name)
	return -1
}

func rowValue(t *testing.T, schema domain.SchemaDescriptor, row domain.NormalizedRow, name string) any {
	t.Helper()
	return row[columnIndex(t, schema, name)]
}

var errStorage = errors.New("connection refused")
