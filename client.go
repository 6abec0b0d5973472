// Package mistfall is a typed relational runtime layered over a versioned,
// transactional object-store facility. Connect selects one of two backends
// — an in-process memory store or a persistent store over modernc.org/sqlite
// — behind a single Client contract, so callers (and tests) get identical
// semantics regardless of which one is live.
package mistfall

import (
	"fmt"

	"github.com/mistfall/mistfall/internal/memstore"
	"github.com/mistfall/mistfall/internal/paths"
	"github.com/mistfall/mistfall/internal/queryeval"
	"github.com/mistfall/mistfall/internal/sqlstore"
	"github.com/mistfall/mistfall/pkg/config"
	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// Row is a loosely typed record, the unit every CRUD operation reads and
// writes. Static code paths that need a specific column go through the
// schema's *schema.Column descriptors, not a generated accessor.
type Row = map[string]any

// QueryOptions configures Select. OrderBy is a column name; Order is "asc"
// (default) or "desc"; HasLimit distinguishes "no limit" from "limit 0".
type QueryOptions struct {
	Where    func(Row) bool
	OrderBy  string
	Order    string
	Offset   int
	Limit    int
	HasLimit bool
}

func (o QueryOptions) toEvaluator() queryeval.Options {
	var selector queryeval.Selector
	if o.OrderBy != "" {
		selector = queryeval.ColumnSelector(o.OrderBy)
	}
	return queryeval.Options{
		Where:    o.Where,
		OrderBy:  selector,
		Desc:     o.Order == "desc",
		Offset:   o.Offset,
		Limit:    o.Limit,
		HasLimit: o.HasLimit,
	}
}

// Session is the CRUD surface exposed inside a transaction's function,
// restricted to the tables the transaction declared.
type Session interface {
	Insert(table string, rows []Row) ([]Row, error)
	Select(table string, opts QueryOptions) ([]Row, error)
	Update(table string, where func(Row) bool, patch Row) (int, error)
	Delete(table string, where func(Row) bool) (int, error)
}

// Client is the runtime surface Connect returns. Both backends satisfy it
// structurally — neither internal package imports this one, so there is no
// import cycle between the facade and its adapters.
type Client interface {
	Kind() string
	Schema() *schema.Schema
	Insert(table string, rows []Row) ([]Row, error)
	Select(table string, opts QueryOptions) ([]Row, error)
	Update(table string, where func(Row) bool, patch Row) (int, error)
	Delete(table string, where func(Row) bool) (int, error)
	Transaction(tables []string, fn func(Session) (any, error)) (any, error)
	Close() error
}

// ConnectOptions configures Connect. DBName defaults to schema.Name;
// Adapter defaults to config.AdapterAuto, which picks the persistent
// backend when DataDir is non-empty and memory otherwise.
type ConnectOptions struct {
	DBName  string
	Adapter string
	DataDir string
}

// Connect builds a Client over the given schema per opts. Adapter selection
// follows config.Validate's taxonomy; AdapterAuto is resolved here rather
// than in pkg/config, since only Connect knows whether a data directory was
// actually supplied.
func Connect(s *schema.Schema, opts ConnectOptions) (Client, error) {
	if opts.Adapter == "" {
		opts.Adapter = config.AdapterAuto
	}
	cfg := config.Config{Adapter: opts.Adapter, DataDir: opts.DataDir}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	usePersistent := opts.Adapter == config.AdapterPersistent ||
		(opts.Adapter == config.AdapterAuto && opts.DataDir != "")

	if !usePersistent {
		return &memoryClient{b: memstore.New(s)}, nil
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		resolved, err := paths.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolving default data directory: %v", mistfallerr.ErrBackend, err)
		}
		dataDir = resolved
	}
	dbPath := paths.DBPath(dataDir, s, opts.DBName)

	backend, err := sqlstore.Open(s, dbPath)
	if err != nil {
		return nil, err
	}
	return &persistentClient{b: backend}, nil
}
