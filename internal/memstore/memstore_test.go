package memstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

func usersTodosSchema(t *testing.T) *schema.Schema {
	users := schema.NewTable("users", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("name", schema.KindStringUnbounded).WithNotNull(),
		schema.NewColumn("role", schema.KindEnum).WithDefault("a"),
	})
	todos := schema.NewTable("todos", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("title", schema.KindStringUnbounded).WithNotNull(),
		schema.NewColumn("ownerId", schema.KindInteger).WithNotNull().References(func(tables schema.TableLookup) (*schema.Column, error) {
			ut, _ := tables.Table("users")
			return ut.Column("id"), nil
		}),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"users", "todos"},
		map[string]*schema.Table{"users": users, "todos": todos})
	require.NoError(t, err)
	return s
}

func TestScenario1_IdentityAndDefault(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)

	_, err := b.Insert("users", []map[string]any{{"name": "x"}})
	require.NoError(t, err)
	_, err = b.Insert("users", []map[string]any{{"name": "y"}})
	require.NoError(t, err)

	rows, err := b.Select("users", queryeval.Options{OrderBy: queryeval.ColumnSelector("id")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "x", "role": "a"}, rows[0])
	assert.Equal(t, map[string]any{"id": int64(2), "name": "y", "role": "a"}, rows[1])
}

func TestScenario2_ForeignKeyEnforcement(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)

	inserted, err := b.Insert("users", []map[string]any{{"name": "owner"}})
	require.NoError(t, err)
	ownerID := inserted[0]["id"]

	_, err = b.Insert("todos", []map[string]any{{"title": "t", "ownerId": ownerID}})
	require.NoError(t, err)

	_, err = b.Insert("todos", []map[string]any{{"title": "t2", "ownerId": int64(2)}})
	assert.ErrorIs(t, err, mistfallerr.ErrForeignKeyViolation)
}

func TestScenario3_RestrictDelete(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)

	inserted, err := b.Insert("users", []map[string]any{{"name": "owner"}})
	require.NoError(t, err)
	ownerID := inserted[0]["id"]
	_, err = b.Insert("todos", []map[string]any{{"title": "t", "ownerId": ownerID}})
	require.NoError(t, err)

	_, err = b.Delete("users", func(r map[string]any) bool { return r["id"] == ownerID })
	assert.ErrorIs(t, err, mistfallerr.ErrRestrictDeletion)

	users, _ := b.Select("users", queryeval.Options{})
	todos, _ := b.Select("todos", queryeval.Options{})
	assert.Len(t, users, 1)
	assert.Len(t, todos, 1)
}

func TestScenario4_TransactionRollback(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)

	boom := errors.New("boom")
	_, err := b.Transaction([]string{"users", "todos"}, func(sess Session) (any, error) {
		inserted, err := sess.Insert("users", []map[string]any{{"name": "owner"}})
		require.NoError(t, err)
		_, err = sess.Insert("todos", []map[string]any{{"title": "t", "ownerId": inserted[0]["id"]}})
		require.NoError(t, err)
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	users, _ := b.Select("users", queryeval.Options{})
	todos, _ := b.Select("todos", queryeval.Options{})
	assert.Empty(t, users)
	assert.Empty(t, todos)

	inserted, err := b.Insert("users", []map[string]any{{"name": "fresh"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted[0]["id"], "sequence must roll back along with the store")
}

func TestScenario5_OnUpdateHookPrecedence(t *testing.T) {
	events := schema.NewTable("events", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("name", schema.KindStringUnbounded),
		schema.NewColumn("updatedAt", schema.KindInteger).
			WithDefaultFn(func() any { return int64(100) }).
			WithOnUpdate(func(prev any) any { return prev.(int64) + 1 }),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"events"}, map[string]*schema.Table{"events": events})
	require.NoError(t, err)
	b := New(s)

	inserted, err := b.Insert("events", []map[string]any{{"name": "a"}})
	require.NoError(t, err)
	assert.Equal(t, int64(100), inserted[0]["updatedAt"])
	id := inserted[0]["id"]

	_, err = b.Update("events", func(r map[string]any) bool { return r["id"] == id }, map[string]any{"name": "q"})
	require.NoError(t, err)
	rows, _ := b.Select("events", queryeval.Options{})
	assert.Equal(t, int64(101), rows[0]["updatedAt"])

	_, err = b.Update("events", func(r map[string]any) bool { return r["id"] == id }, map[string]any{"updatedAt": int64(555)})
	require.NoError(t, err)
	rows, _ = b.Select("events", queryeval.Options{})
	assert.Equal(t, int64(555), rows[0]["updatedAt"])
}

func TestScenario6_QueryOptions(t *testing.T) {
	tbl := schema.NewTable("items", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey(),
		schema.NewColumn("v", schema.KindInteger),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"items"}, map[string]*schema.Table{"items": tbl})
	require.NoError(t, err)
	b := New(s)

	for i := 1; i <= 5; i++ {
		_, err := b.Insert("items", []map[string]any{{"id": int64(i), "v": int64(i % 3)}})
		require.NoError(t, err)
	}

	rows, err := b.Select("items", queryeval.Options{
		Where:    func(r map[string]any) bool { return r["v"] == int64(1) },
		OrderBy:  queryeval.ColumnSelector("id"),
		Desc:     true,
		Offset:   1,
		Limit:    1,
		HasLimit: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
}

func TestInsert_PrimaryKeyUniqueness(t *testing.T) {
	tbl := schema.NewTable("items", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey(),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"items"}, map[string]*schema.Table{"items": tbl})
	require.NoError(t, err)
	b := New(s)

	_, err = b.Insert("items", []map[string]any{{"id": int64(1)}})
	require.NoError(t, err)
	_, err = b.Insert("items", []map[string]any{{"id": int64(1)}})
	assert.ErrorIs(t, err, mistfallerr.ErrPrimaryKeyViolation)
}

// TestScenario2_ForeignKeyEnforcement_MixedNumericTypes confirms that a
// foreign key reference survives a type mismatch between the identity value
// the backend allocated (int64) and the literal type a caller naturally
// supplies (a plain int, or a float64 as encoding/json would decode it).
func TestScenario2_ForeignKeyEnforcement_MixedNumericTypes(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)

	inserted, err := b.Insert("users", []map[string]any{{"name": "owner"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted[0]["id"])

	_, err = b.Insert("todos", []map[string]any{{"title": "int literal", "ownerId": 1}})
	require.NoError(t, err)
	_, err = b.Insert("todos", []map[string]any{{"title": "json float", "ownerId": float64(1)}})
	require.NoError(t, err)

	_, err = b.Insert("todos", []map[string]any{{"title": "dangling", "ownerId": 999}})
	assert.ErrorIs(t, err, mistfallerr.ErrForeignKeyViolation)
}

// TestInsert_PrimaryKeyUniqueness_MixedNumericTypes confirms that a
// primary key inserted as an int and the "same" value inserted again as an
// int64 are recognized as the same key rather than creating two rows.
func TestInsert_PrimaryKeyUniqueness_MixedNumericTypes(t *testing.T) {
	tbl := schema.NewTable("items", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey(),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"items"}, map[string]*schema.Table{"items": tbl})
	require.NoError(t, err)
	b := New(s)

	_, err = b.Insert("items", []map[string]any{{"id": 1}})
	require.NoError(t, err)
	_, err = b.Insert("items", []map[string]any{{"id": int64(1)}})
	assert.ErrorIs(t, err, mistfallerr.ErrPrimaryKeyViolation)

	rows, err := b.Select("items", queryeval.Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestInsert_UniqueColumnViolation(t *testing.T) {
	tbl := schema.NewTable("users", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("email", schema.KindStringUnbounded).WithUnique(),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"users"}, map[string]*schema.Table{"users": tbl})
	require.NoError(t, err)
	b := New(s)

	_, err = b.Insert("users", []map[string]any{{"email": "a@example.com"}})
	require.NoError(t, err)
	_, err = b.Insert("users", []map[string]any{{"email": "a@example.com"}})
	assert.ErrorIs(t, err, mistfallerr.ErrUniqueViolation)

	// A nil value on a unique column never collides, matching SQL semantics.
	_, err = b.Insert("users", []map[string]any{{}})
	require.NoError(t, err)
	_, err = b.Insert("users", []map[string]any{{}})
	require.NoError(t, err)
}

func TestInsert_UniqueIndexViolation(t *testing.T) {
	tbl := schema.NewTable("memberships", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("orgId", schema.KindInteger).WithNotNull(),
		schema.NewColumn("userId", schema.KindInteger).WithNotNull(),
	}, schema.NewIndex("org_user", true, "orgId", "userId"))
	s, err := schema.New(schema.Options{Name: "app"}, []string{"memberships"}, map[string]*schema.Table{"memberships": tbl})
	require.NoError(t, err)
	b := New(s)

	_, err = b.Insert("memberships", []map[string]any{{"orgId": int64(1), "userId": int64(1)}})
	require.NoError(t, err)
	_, err = b.Insert("memberships", []map[string]any{{"orgId": int64(1), "userId": int64(1)}})
	assert.ErrorIs(t, err, mistfallerr.ErrUniqueViolation)
	_, err = b.Insert("memberships", []map[string]any{{"orgId": int64(1), "userId": int64(2)}})
	assert.NoError(t, err)
}

// TestInsert_MultiRowBatchIsAtomic confirms that a failing row partway
// through a multi-row Insert leaves none of the batch committed, matching
// internal/sqlstore's single-transaction Insert rather than leaving earlier
// rows in the same call already written.
func TestInsert_MultiRowBatchIsAtomic(t *testing.T) {
	tbl := schema.NewTable("users", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("email", schema.KindStringUnbounded).WithUnique(),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"users"}, map[string]*schema.Table{"users": tbl})
	require.NoError(t, err)
	b := New(s)

	_, err = b.Insert("users", []map[string]any{
		{"email": "a@example.com"},
		{"email": "a@example.com"}, // duplicates the row above
	})
	assert.ErrorIs(t, err, mistfallerr.ErrUniqueViolation)

	rows, err := b.Select("users", queryeval.Options{})
	require.NoError(t, err)
	assert.Empty(t, rows, "failed batch must not leave any row committed")

	// The identity counter consumed by the rolled-back batch must also be
	// released, the same way a rolled-back SQL transaction reverts __seq.
	inserted, err := b.Insert("users", []map[string]any{{"email": "b@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted[0]["id"])
}

func TestUpdate_UniqueColumnViolation(t *testing.T) {
	tbl := schema.NewTable("users", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("email", schema.KindStringUnbounded).WithUnique(),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"users"}, map[string]*schema.Table{"users": tbl})
	require.NoError(t, err)
	b := New(s)

	inserted, err := b.Insert("users", []map[string]any{{"email": "a@example.com"}, {"email": "b@example.com"}})
	require.NoError(t, err)
	secondID := inserted[1]["id"]

	_, err = b.Update("users", func(r map[string]any) bool { return r["id"] == secondID },
		map[string]any{"email": "a@example.com"})
	assert.ErrorIs(t, err, mistfallerr.ErrUniqueViolation)

	// Updating a row to keep its own existing value is not a collision.
	_, err = b.Update("users", func(r map[string]any) bool { return r["id"] == secondID },
		map[string]any{"email": "b@example.com"})
	assert.NoError(t, err)
}

func TestTransaction_EmptyTableListFails(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)
	_, err := b.Transaction(nil, func(sess Session) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, mistfallerr.ErrEmptyTransaction)
}

func TestSession_UndeclaredTableRejected(t *testing.T) {
	s := usersTodosSchema(t)
	b := New(s)
	_, err := b.Transaction([]string{"users"}, func(sess Session) (any, error) {
		return sess.Insert("todos", []map[string]any{{"title": "t", "ownerId": int64(1)}})
	})
	assert.ErrorIs(t, err, mistfallerr.ErrUndeclaredTable)
}

func TestSelect_CloneIsolation(t *testing.T) {
	tbl := schema.NewTable("items", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey(),
	})
	s, err := schema.New(schema.Options{Name: "app"}, []string{"items"}, map[string]*schema.Table{"items": tbl})
	require.NoError(t, err)
	b := New(s)
	_, err = b.Insert("items", []map[string]any{{"id": int64(1)}})
	require.NoError(t, err)

	rows, _ := b.Select("items", queryeval.Options{})
	rows[0]["id"] = int64(999)

	rows2, _ := b.Select("items", queryeval.Options{})
	assert.Equal(t, int64(1), rows2[0]["id"])
}
