// Package integration exercises the mistfall.Client facade end-to-end
// against both backends, the way a host application would use it rather
// than the way the internal backend packages unit-test themselves.
package integration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mistfall/mistfall"
	"github.com/mistfall/mistfall/pkg/config"
	"github.com/mistfall/mistfall/pkg/schema"
)

// connectWith opens a Client against the named adapter, giving a persistent
// adapter its own temp directory so runs never collide.
func connectWith(t *testing.T, s *schema.Schema, adapter string) mistfall.Client {
	t.Helper()
	opts := mistfall.ConnectOptions{Adapter: adapter}
	if adapter == config.AdapterPersistent {
		opts.DataDir = t.TempDir()
	}
	c, err := mistfall.Connect(s, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// adapters is the pair every scenario test in this package runs against.
var adapters = []string{config.AdapterMemory, config.AdapterPersistent}

func usersTodosSchema(t *testing.T) *schema.Schema {
	t.Helper()
	users := schema.NewTable("users", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("name", schema.KindStringUnbounded).WithNotNull(),
		schema.NewColumn("role", schema.KindEnum).WithDefault("member"),
	})
	todos := schema.NewTable("todos", []*schema.Column{
		schema.NewColumn("id", schema.KindInteger).WithPrimaryKey().WithIdentity(),
		schema.NewColumn("title", schema.KindStringUnbounded).WithNotNull(),
		schema.NewColumn("ownerId", schema.KindInteger).WithNotNull().References(func(tables schema.TableLookup) (*schema.Column, error) {
			ut, _ := tables.Table("users")
			return ut.Column("id"), nil
		}),
	})
	s, err := schema.New(schema.Options{Name: "lifecycle", Version: 1}, []string{"users", "todos"},
		map[string]*schema.Table{"users": users, "todos": todos})
	require.NoError(t, err)
	return s
}

// TestIdentityAndDefault inserts rows omitting the identity column and a
// column with a declared default, and checks both are filled in on return.
func TestIdentityAndDefault(t *testing.T) {
	for _, adapter := range adapters {
		t.Run(adapter, func(t *testing.T) {
			s := usersTodosSchema(t)
			c := connectWith(t, s, adapter)

			inserted, err := c.Insert("users", []mistfall.Row{{"name": "ada"}, {"name": "grace"}})
			require.NoError(t, err)
			require.Len(t, inserted, 2)
			require.Equal(t, int64(1), inserted[0]["id"])
			require.Equal(t, "member", inserted[0]["role"])
			require.Equal(t, int64(2), inserted[1]["id"])
		})
	}
}
