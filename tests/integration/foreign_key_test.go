package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistfall/mistfall"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// TestForeignKeyEnforcement checks that inserting a row whose foreign key
// points at a nonexistent row fails, and that a valid reference succeeds.
func TestForeignKeyEnforcement(t *testing.T) {
	for _, adapter := range adapters {
		t.Run(adapter, func(t *testing.T) {
			s := usersTodosSchema(t)
			c := connectWith(t, s, adapter)

			inserted, err := c.Insert("users", []mistfall.Row{{"name": "owner"}})
			require.NoError(t, err)
			ownerID := inserted[0]["id"]

			_, err = c.Insert("todos", []mistfall.Row{{"title": "valid", "ownerId": ownerID}})
			require.NoError(t, err)

			_, err = c.Insert("todos", []mistfall.Row{{"title": "dangling", "ownerId": int64(999)}})
			assert.ErrorIs(t, err, mistfallerr.ErrForeignKeyViolation)
		})
	}
}
