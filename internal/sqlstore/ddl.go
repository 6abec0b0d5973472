package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mistfall/mistfall/pkg/schema"
)

const metaTable = "__meta"
const seqTable = "__seq"

// upgrade is the upgrade planner: it reads the stored schema version and,
// when it is below the schema's declared version (including "never
// opened before"), creates every missing object store and index
// additively and records a fresh schema signature and timestamp.
// Schema removals and column drops are out of scope — evolution is
// additive only.
func upgrade(db *sql.DB, s *schema.Schema) error {
	if err := ensureReservedStores(db); err != nil {
		return err
	}

	storedVersion, err := readStoredVersion(db)
	if err != nil {
		return err
	}
	if storedVersion >= s.Version {
		return nil
	}

	for _, t := range s.Tables() {
		if err := ensureTable(db, t); err != nil {
			return err
		}
		if err := ensureIndexes(db, t); err != nil {
			return err
		}
	}

	return writeMetaRecord(db, s)
}

func ensureReservedStores(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			key TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			signature TEXT NOT NULL,
			upgraded_at TEXT NOT NULL
		)`, metaTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			table_name TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0
		)`, seqTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensuring reserved store: %w", err)
		}
	}
	return nil
}

func readStoredVersion(db *sql.DB) (int, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT version FROM %q WHERE key = 'schema'`, metaTable))
	var version int
	if err := row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("reading stored schema version: %w", err)
	}
	return version, nil
}

func writeMetaRecord(db *sql.DB, s *schema.Schema) error {
	stmt := fmt.Sprintf(`INSERT INTO %q (key, version, signature, upgraded_at)
		VALUES ('schema', ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET version = excluded.version,
			signature = excluded.signature, upgraded_at = excluded.upgraded_at`, metaTable)
	_, err := db.Exec(stmt, s.Version, s.Signature(), nowString())
	if err != nil {
		return fmt.Errorf("writing schema meta record: %w", err)
	}
	return nil
}

// nowString is factored out so tests could substitute a fixed clock if the
// meta record's timestamp ever needs to be asserted exactly.
func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ensureTable creates t's backing store if it doesn't exist yet, and
// otherwise — since CREATE TABLE IF NOT EXISTS is a no-op against an
// already-existing table — brings an existing table up to date with any
// column t's schema has declared since it was last created, including
// computed-index fields. Evolution is additive only: a column added this
// way picks up its declared type but not NOT NULL or UNIQUE, since SQLite
// can't retrofit either onto a column whose existing rows have no value
// for it.
func ensureTable(db *sql.DB, t *schema.Table) error {
	var cols []string
	var pk string
	for _, c := range t.Columns {
		col := fmt.Sprintf("%q %s", c.Name, sqlType(c.Kind))
		if c.NotNull {
			col += " NOT NULL"
		}
		if c.Unique && !c.PrimaryKey {
			col += " UNIQUE"
		}
		cols = append(cols, col)
		if c.PrimaryKey {
			pk = c.Name
		}
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (%s, PRIMARY KEY (%q))`,
		t.StorageName(), strings.Join(cols, ", "), pk)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("creating store %s: %w", t.StorageName(), err)
	}

	for _, c := range t.Columns {
		if err := ensureColumn(db, t, c.Name, sqlType(c.Kind)); err != nil {
			return err
		}
	}
	for _, idx := range t.Indexes {
		if idx.Computed == nil {
			continue
		}
		if err := ensureColumn(db, t, idx.Computed.Field, "TEXT"); err != nil {
			return err
		}
	}
	return nil
}

// ensureColumn adds name to t's store unless it is already there. SQLite's
// ALTER TABLE has no IF NOT EXISTS form, so the column list is checked first.
func ensureColumn(db *sql.DB, t *schema.Table, name, sqlColType string) error {
	var present int
	row := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, t.StorageName(), name)
	if err := row.Scan(&present); err != nil {
		return fmt.Errorf("checking column %s.%s: %w", t.StorageName(), name, err)
	}
	if present > 0 {
		return nil
	}
	stmt := fmt.Sprintf(`ALTER TABLE %q ADD COLUMN %q %s`, t.StorageName(), name, sqlColType)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("adding column %s.%s: %w", t.StorageName(), name, err)
	}
	return nil
}

func ensureIndexes(db *sql.DB, t *schema.Table) error {
	for _, idx := range t.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		idxName := fmt.Sprintf("%s_%s", t.StorageName(), idx.Name)
		cols := indexColumns(idx)
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		stmt := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS %q ON %q (%s)`,
			unique, idxName, t.StorageName(), strings.Join(quoted, ", "))
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating index %s: %w", idxName, err)
		}
	}
	return nil
}

// indexColumns returns every column a unique index must cover: a computed
// index's materialized field, or a plain index's full declared column list
// — not just its first column, since a composite UNIQUE index enforces
// uniqueness over the combination, not over any single member column.
func indexColumns(idx *schema.Index) []string {
	if idx.Computed != nil {
		return []string{idx.Computed.Field}
	}
	return idx.Columns
}
