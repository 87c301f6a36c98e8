package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// fakeDB records statements and replays canned results in order.
type fakeDB struct {
	database.Database
	queries []string
	vars    []map[string]interface{}
	results [][]interface{}
	err     error
}

func resultOf(rows ...interface{}) []interface{} {
	return []interface{}{map[string]interface{}{"status": "OK", "result": rows}}
}

func (f *fakeDB) Query(_ context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	f.queries = append(f.queries, query)
	f.vars = append(f.vars, vars)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next, nil
}

// unselectedOrderFields lists ORDER BY fields that a statement's projection
// leaves out. SurrealDB refuses to parse such statements.
func unselectedOrderFields(query string) []string {
	q := strings.Join(strings.Fields(query), " ")
	upper := strings.ToUpper(q)
	from := strings.Index(upper, " FROM ")
	order := strings.Index(upper, " ORDER BY ")
	if !strings.HasPrefix(upper, "SELECT ") || from < 0 || order < 0 {
		return nil
	}
	projection := strings.TrimSpace(q[len("SELECT "):from])
	if projection == "*" {
		return nil
	}
	selected := map[string]bool{}
	for _, col := range strings.Split(projection, ",") {
		if fields := strings.Fields(col); len(fields) > 0 {
			selected[fields[len(fields)-1]] = true
		}
	}

	orderBy := q[order+len(" ORDER BY "):]
	for _, kw := range []string{" LIMIT ", " START ", " FETCH "} {
		if i := strings.Index(strings.ToUpper(orderBy), kw); i >= 0 {
			orderBy = orderBy[:i]
		}
	}
	var missing []string
	for _, term := range strings.Split(orderBy, ",") {
		if fields := strings.Fields(term); len(fields) > 0 && !selected[fields[0]] {
			missing = append(missing, fields[0])
		}
	}
	return missing
}

func TestUnselectedOrderFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT a, b FROM t ORDER BY id", []string{"id"}},
		{"SELECT id, a FROM t WHERE a = $a ORDER BY id LIMIT $limit", nil},
		{"SELECT * FROM t ORDER BY deleted_at", nil},
		{"SELECT a, count() AS n FROM t GROUP BY a", nil},
		{"SELECT id, a FROM t ORDER BY a DESC, b ASC", []string{"b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unselectedOrderFields(tt.query), tt.query)
	}
}

func (f *fakeDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := f.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	rows := statementRows(results, 0)
	if len(rows) == 0 {
		return nil, database.ErrNotFound
	}
	return map[string]interface{}(rows[0]), nil
}

func (f *fakeDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := f.Query(ctx, query, vars)
	return err
}

func TestSetClause(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 21, 18, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	vars := map[string]interface{}{}
	got := setClause(xtable.Row{
		"name":     "Fête",
		"start_at": at,
		"location": nil,
	}, vars)

	assert.Equal(t, "location = NONE, name = $c_name, start_at = <datetime> $c_start_at", got)
	assert.Equal(t, "Fête", vars["c_name"])
	assert.Equal(t, "2024-06-21T16:00:00Z", vars["c_start_at"])
	assert.NotContains(t, vars, "c_location")
}

func TestStatementRows(t *testing.T) {
	t.Parallel()

	wrapped := resultOf(map[string]interface{}{"a": 1}, "skipped", map[string]interface{}{"a": 2})
	assert.Len(t, statementRows(wrapped, 0), 2)
	assert.Nil(t, statementRows(wrapped, 1))

	single := []interface{}{map[string]interface{}{"status": "OK", "result": map[string]interface{}{"a": 1}}}
	assert.Len(t, statementRows(single, 0), 1)
}

func TestExtractCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, extractCount(resultOf(map[string]interface{}{"count": uint64(7)})))
	assert.Equal(t, 0, extractCount(resultOf()))
}

func TestTableRepository_Get(t *testing.T) {
	t.Parallel()

	db := &fakeDB{results: [][]interface{}{
		resultOf(map[string]interface{}{"id": models.RecordID{Table: "event", ID: "a1"}, "name": "Gig"}),
	}}
	repo := NewTableRepository(db)

	row, err := repo.Get(context.Background(), "event", "a1")
	require.NoError(t, err)
	assert.Equal(t, "event:a1", row["id"])
	assert.Equal(t, "event:a1", db.vars[0]["id"])

	_, err = repo.Get(context.Background(), "event", "song:a1")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Len(t, db.queries, 1, "foreign ids never reach the database")
}

func TestTableRepository_InsertWithKey(t *testing.T) {
	t.Parallel()

	db := &fakeDB{results: [][]interface{}{
		resultOf(map[string]interface{}{"id": "permission:view_setlists", "name": "view_setlists"}),
	}}
	repo := NewTableRepository(db)

	row, err := repo.Insert(context.Background(), "permission", "view_setlists", xtable.Row{"name": "view_setlists"})
	require.NoError(t, err)
	assert.Equal(t, "permission:view_setlists", row["id"])
	assert.Equal(t, "CREATE type::thing($table, $key) SET name = $c_name RETURN AFTER", db.queries[0])
	assert.Equal(t, "view_setlists", db.vars[0]["key"])
}

func TestTableRepository_DeleteRemovesLinks(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	repo := NewTableRepository(db)
	links := []xtable.AssociationLink{
		{Spec: changeplan.Spec{Table: "event_tag_assignment"}, Column: "event_id"},
		{Spec: changeplan.Spec{Table: "file_event_assignment"}, Column: "event_id"},
	}

	require.NoError(t, repo.Delete(context.Background(), "event", "event:a1", links))
	require.Len(t, db.queries, 1)
	q := db.queries[0]
	assert.True(t, strings.HasPrefix(q, "BEGIN TRANSACTION;"))
	assert.Contains(t, q, "DELETE event_tag_assignment WHERE event_id = $")
	assert.Contains(t, q, "DELETE file_event_assignment WHERE event_id = $")
	assert.Contains(t, q, "DELETE type::record($")
}

func TestTableRepository_Existing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{results: [][]interface{}{{
		map[string]interface{}{"status": "OK", "result": []interface{}{map[string]interface{}{"id": "event_tag:brass"}}},
		map[string]interface{}{"status": "OK", "result": []interface{}{}},
	}}}

	got, err := NewTableRepository(db).Existing(context.Background(), []string{"event_tag:brass", "event_tag:nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"event_tag:brass": true, "event_tag:nope": false}, got)
	require.Len(t, db.queries, 1)
	assert.Equal(t, 2, strings.Count(db.queries[0], "SELECT id FROM type::record($ref_"))
	assert.Equal(t, "event_tag:nope", db.vars[0]["ref_1"])

	empty := &fakeDB{}
	got, err = NewTableRepository(empty).Existing(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, empty.queries)
}

func TestTableRepository_GroupCount(t *testing.T) {
	t.Parallel()

	db := &fakeDB{results: [][]interface{}{resultOf(
		map[string]interface{}{"status_id": "event_status:confirmed", "count": uint64(3)},
		map[string]interface{}{"status_id": "event_status:tentative", "count": 1.0},
	)}}
	counts, err := NewTableRepository(db).GroupCount(context.Background(), "event", "status_id")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"event_status:confirmed": 3, "event_status:tentative": 1}, counts)
}

func TestAssociationRepository_Current(t *testing.T) {
	t.Parallel()

	spec := changeplan.Spec{Table: "event_tag_assignment", LocalKey: "event_id", ForeignKey: "event_tag_id"}
	db := &fakeDB{results: [][]interface{}{resultOf(
		map[string]interface{}{"id": models.RecordID{Table: "event_tag_assignment", ID: "x"}, "event_id": "event:a", "event_tag_id": "event_tag:street"},
	)}}

	recs, err := NewAssociationRepository(db).Current(context.Background(), spec, "event:a")
	require.NoError(t, err)
	assert.Equal(t, []changeplan.Record{{ID: "event_tag_assignment:x", LocalID: "event:a", ForeignID: "event_tag:street"}}, recs)
	assert.Empty(t, unselectedOrderFields(db.queries[0]))
}

func TestAssociationRepository_CurrentForMany(t *testing.T) {
	t.Parallel()

	spec := changeplan.Spec{Table: "event_tag_assignment", LocalKey: "event_id", ForeignKey: "event_tag_id"}
	db := &fakeDB{results: [][]interface{}{resultOf(
		map[string]interface{}{"id": "event_tag_assignment:1", "event_id": "event:a", "event_tag_id": "event_tag:street"},
		map[string]interface{}{"id": "event_tag_assignment:2", "event_id": "event:a", "event_tag_id": "event_tag:brass"},
		map[string]interface{}{"id": "event_tag_assignment:3", "event_id": "event:b", "event_tag_id": "event_tag:brass"},
	)}}

	got, err := NewAssociationRepository(db).CurrentForMany(context.Background(), spec, []string{"event:a", "event:b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"event:a": {"event_tag:street", "event_tag:brass"},
		"event:b": {"event_tag:brass"},
	}, got)
	require.Len(t, db.queries, 1)
	assert.Empty(t, unselectedOrderFields(db.queries[0]))
}

func TestAssociationRepository_AppliesPlan(t *testing.T) {
	t.Parallel()

	spec := changeplan.Spec{Table: "event_tag_assignment", LocalKey: "event_id", ForeignKey: "event_tag_id", ForeignTable: "event_tag"}
	db := &fakeDB{}
	repo := NewAssociationRepository(db)

	current := []changeplan.Record{
		{ID: "event_tag_assignment:1", ForeignID: "event_tag:a"},
		{ID: "event_tag_assignment:2", ForeignID: "event_tag:b"},
	}
	plan, err := changeplan.UpdateAssociations(context.Background(), repo, spec, "event:e", current,
		changeplan.FromIDs("event:e", []string{"event_tag:b", "event_tag:c"}))
	require.NoError(t, err)

	assert.Equal(t, changeplan.Counts{Create: 1, Delete: 1, Unchanged: 1}, plan.Counts())
	require.Len(t, db.queries, 2, "one transaction for deletes, one for creates")
	assert.Contains(t, db.queries[0], "DELETE type::record($")
	assert.Contains(t, db.queries[1], "CREATE event_tag_assignment SET event_id = $")

	var sawForeign bool
	for _, v := range db.vars[1] {
		if v == "event_tag:c" {
			sawForeign = true
		}
	}
	assert.True(t, sawForeign)
}

func TestUserRepository_GetPrincipal(t *testing.T) {
	t.Parallel()

	t.Run("role permissions", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{results: [][]interface{}{
			resultOf(map[string]interface{}{"id": "user:u1", "role_id": "role:editor", "is_sys_admin": false}),
			resultOf("permission:view_events", "permission:manage_events"),
		}}
		p, err := NewUserRepository(db).GetPrincipal(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "user:u1", p.UserID)
		assert.True(t, p.Has("manage_events"))
		assert.False(t, p.Has("view_songs"))
		assert.Equal(t, "role:editor", db.vars[1]["role"])
	})

	t.Run("deleted user", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{results: [][]interface{}{
			resultOf(map[string]interface{}{"id": "user:u2", "is_deleted": true}),
		}}
		_, err := NewUserRepository(db).GetPrincipal(context.Background(), "user:u2")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestUserRepository_PromoteSysAdmin(t *testing.T) {
	t.Parallel()

	t.Run("existing user", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{results: [][]interface{}{
			resultOf(map[string]interface{}{"id": models.RecordID{Table: "user", ID: "ann"}}),
		}}
		id, created, err := NewUserRepository(db).PromoteSysAdmin(context.Background(), " Ann@Example.com ", "", "role:admin")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "user:ann", id)
		assert.Equal(t, "ann@example.com", db.vars[0]["email"])
		require.Len(t, db.queries, 2)
		assert.Contains(t, db.queries[1], "is_sys_admin = true")
		assert.Equal(t, "user:ann", db.vars[1]["id"])
	})

	t.Run("new user", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{results: [][]interface{}{
			resultOf(),
			resultOf(map[string]interface{}{"id": "user:new"}),
		}}
		id, created, err := NewUserRepository(db).PromoteSysAdmin(context.Background(), "zoë@example.com", "Zoë", "role:admin")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "user:new", id)
		require.Len(t, db.queries, 2)
		assert.Contains(t, db.queries[1], "CREATE user SET")
		assert.Equal(t, "zoe", db.vars[1]["name_folded"])
		assert.Equal(t, "role:admin", db.vars[1]["role"])
	})
}

func TestFileRepository_ListPurgeable(t *testing.T) {
	t.Parallel()

	db := &fakeDB{results: [][]interface{}{resultOf(
		map[string]interface{}{"id": "file:f1", "blob_key": "files/f1/abc", "size_bytes": uint64(12)},
	)}}
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := NewFileRepository(db).ListPurgeable(context.Background(), cutoff, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "files/f1/abc", got[0].BlobKey)
	assert.Equal(t, int64(12), got[0].SizeBytes)
	assert.Equal(t, "2024-01-01T00:00:00Z", db.vars[0]["cutoff"])
	assert.Empty(t, unselectedOrderFields(db.queries[0]))
}
