package mistfall

import (
	"github.com/mistfall/mistfall/internal/sqlstore"
	"github.com/mistfall/mistfall/pkg/schema"
)

// persistentClient adapts an *sqlstore.Backend to the Client contract.
type persistentClient struct {
	b *sqlstore.Backend
}

func (c *persistentClient) Kind() string           { return c.b.Kind() }
func (c *persistentClient) Schema() *schema.Schema { return c.b.Schema() }
func (c *persistentClient) Close() error           { return c.b.Close() }

func (c *persistentClient) Insert(table string, rows []Row) ([]Row, error) {
	return c.b.Insert(table, rows)
}

func (c *persistentClient) Select(table string, opts QueryOptions) ([]Row, error) {
	return c.b.Select(table, opts.toEvaluator())
}

func (c *persistentClient) Update(table string, where func(Row) bool, patch Row) (int, error) {
	return c.b.Update(table, where, patch)
}

func (c *persistentClient) Delete(table string, where func(Row) bool) (int, error) {
	return c.b.Delete(table, where)
}

func (c *persistentClient) Transaction(tables []string, fn func(Session) (any, error)) (any, error) {
	return c.b.Transaction(tables, func(sess sqlstore.Session) (any, error) {
		return fn(&persistentSession{sess})
	})
}

// persistentSession adapts a sqlstore.Session to the Client-facing Session type.
type persistentSession struct {
	sess sqlstore.Session
}

func (s *persistentSession) Insert(table string, rows []Row) ([]Row, error) {
	return s.sess.Insert(table, rows)
}

func (s *persistentSession) Select(table string, opts QueryOptions) ([]Row, error) {
	return s.sess.Select(table, opts.toEvaluator())
}

func (s *persistentSession) Update(table string, where func(Row) bool, patch Row) (int, error) {
	return s.sess.Update(table, where, patch)
}

func (s *persistentSession) Delete(table string, where func(Row) bool) (int, error) {
	return s.sess.Delete(table, where)
}
