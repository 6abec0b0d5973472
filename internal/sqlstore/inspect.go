package sqlstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

// MetaRecord is the stored upgrade-planner record for a database file.
type MetaRecord struct {
	Version    int
	Signature  string
	UpgradedAt string
}

// TableCount is a physical table name paired with its row count.
type TableCount struct {
	Name  string
	Count int64
}

// InspectResult is everything Inspect reads from an existing database file
// without writing to it.
type InspectResult struct {
	Meta   *MetaRecord // nil if the database has never been opened by Open
	Tables []TableCount
}

// Inspect opens dbPath without running the upgrade planner and reports the
// stored __meta record plus a row count for every non-reserved table it
// finds. It issues only reads, but the connection uses the driver's default
// read-write open mode, so a dbPath that does not exist yet is created as an
// empty database file.
func Inspect(dbPath string) (*InspectResult, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", mistfallerr.ErrBackend, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	result := &InspectResult{}

	metaExists, err := tableExists(db, metaTable)
	if err != nil {
		return nil, err
	}
	if metaExists {
		meta, err := readMetaRecord(db)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			result.Meta = meta
		}
	}

	names, err := listUserTables(db)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		count, err := countRows(db, name)
		if err != nil {
			return nil, err
		}
		result.Tables = append(result.Tables, TableCount{Name: name, Count: count})
	}
	return result, nil
}

// tableExists reports whether name appears in sqlite_master — used before
// querying __meta, since a database Open has never touched has no __meta
// table at all, and querying a nonexistent table fails with a generic
// driver error rather than sql.ErrNoRows.
func tableExists(db *sql.DB, name string) (bool, error) {
	row := db.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	var exists int
	if err := row.Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("%w: checking for table %s: %v", mistfallerr.ErrBackend, name, err)
	}
	return true, nil
}

func readMetaRecord(db *sql.DB) (*MetaRecord, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT version, signature, upgraded_at FROM %q WHERE key = 'schema'`, metaTable))
	m := &MetaRecord{}
	if err := row.Scan(&m.Version, &m.Signature, &m.UpgradedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func listUserTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT IN ('__meta', '__seq') ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %v", mistfallerr.ErrBackend, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scanning table name: %v", mistfallerr.ErrBackend, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func countRows(db *sql.DB, table string) (int64, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table))
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting rows in %s: %v", mistfallerr.ErrBackend, table, err)
	}
	return n, nil
}
