package integration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistfall/mistfall"
)

// TestTransactionRollback checks that a transaction function returning an
// error undoes every write the function made, across both tables it
// declared.
func TestTransactionRollback(t *testing.T) {
	for _, adapter := range adapters {
		t.Run(adapter, func(t *testing.T) {
			s := usersTodosSchema(t)
			c := connectWith(t, s, adapter)

			boom := errors.New("boom")
			_, err := c.Transaction([]string{"users", "todos"}, func(sess mistfall.Session) (any, error) {
				inserted, err := sess.Insert("users", []mistfall.Row{{"name": "owner"}})
				require.NoError(t, err)
				_, err = sess.Insert("todos", []mistfall.Row{{"title": "t", "ownerId": inserted[0]["id"]}})
				require.NoError(t, err)
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)

			users, err := c.Select("users", mistfall.QueryOptions{})
			require.NoError(t, err)
			assert.Empty(t, users)

			todos, err := c.Select("todos", mistfall.QueryOptions{})
			require.NoError(t, err)
			assert.Empty(t, todos)
		})
	}
}
