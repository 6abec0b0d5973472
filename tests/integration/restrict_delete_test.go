package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistfall/mistfall"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// TestRestrictDelete checks that deleting a row still referenced by another
// table's foreign key is rejected, and that neither side's store changes.
func TestRestrictDelete(t *testing.T) {
	for _, adapter := range adapters {
		t.Run(adapter, func(t *testing.T) {
			s := usersTodosSchema(t)
			c := connectWith(t, s, adapter)

			inserted, err := c.Insert("users", []mistfall.Row{{"name": "owner"}})
			require.NoError(t, err)
			ownerID := inserted[0]["id"]
			_, err = c.Insert("todos", []mistfall.Row{{"title": "t", "ownerId": ownerID}})
			require.NoError(t, err)

			_, err = c.Delete("users", func(r mistfall.Row) bool { return r["id"] == ownerID })
			assert.ErrorIs(t, err, mistfallerr.ErrRestrictDeletion)

			users, err := c.Select("users", mistfall.QueryOptions{})
			require.NoError(t, err)
			assert.Len(t, users, 1)

			todos, err := c.Select("todos", mistfall.QueryOptions{})
			require.NoError(t, err)
			assert.Len(t, todos, 1)
		})
	}
}
