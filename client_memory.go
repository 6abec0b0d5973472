package mistfall

import (
	"github.com/mistfall/mistfall/internal/memstore"
	"github.com/mistfall/mistfall/pkg/schema"
)

// memoryClient adapts an *memstore.Backend to the Client contract.
type memoryClient struct {
	b *memstore.Backend
}

func (c *memoryClient) Kind() string           { return c.b.Kind() }
func (c *memoryClient) Schema() *schema.Schema { return c.b.Schema() }
func (c *memoryClient) Close() error           { return c.b.Close() }

func (c *memoryClient) Insert(table string, rows []Row) ([]Row, error) {
	return c.b.Insert(table, rows)
}

func (c *memoryClient) Select(table string, opts QueryOptions) ([]Row, error) {
	return c.b.Select(table, opts.toEvaluator())
}

func (c *memoryClient) Update(table string, where func(Row) bool, patch Row) (int, error) {
	return c.b.Update(table, where, patch)
}

func (c *memoryClient) Delete(table string, where func(Row) bool) (int, error) {
	return c.b.Delete(table, where)
}

func (c *memoryClient) Transaction(tables []string, fn func(Session) (any, error)) (any, error) {
	return c.b.Transaction(tables, func(sess memstore.Session) (any, error) {
		return fn(&memorySession{sess})
	})
}

// memorySession adapts a memstore.Session to the Client-facing Session type.
type memorySession struct {
	sess memstore.Session
}

func (s *memorySession) Insert(table string, rows []Row) ([]Row, error) {
	return s.sess.Insert(table, rows)
}

func (s *memorySession) Select(table string, opts QueryOptions) ([]Row, error) {
	return s.sess.Select(table, opts.toEvaluator())
}

func (s *memorySession) Update(table string, where func(Row) bool, patch Row) (int, error) {
	return s.sess.Update(table, where, patch)
}

func (s *memorySession) Delete(table string, where func(Row) bool) (int, error) {
	return s.sess.Delete(table, where)
}
