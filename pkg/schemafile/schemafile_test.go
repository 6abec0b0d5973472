package schemafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
)

const yamlDoc = `
name: app
version: 1
tables:
  - name: users
    columns:
      - name: id
        kind: integer
        primaryKey: true
        identity: true
      - name: name
        kind: string
        notNull: true
  - name: todos
    columns:
      - name: id
        kind: integer
        primaryKey: true
        identity: true
      - name: title
        kind: string
        notNull: true
      - name: ownerId
        kind: integer
        notNull: true
        reference:
          table: users
          column: id
    indexes:
      - name: byOwner
        columns: [ownerId]
`

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	users, ok := s.Table("users")
	require.True(t, ok)
	assert.Equal(t, "id", users.PrimaryKey().Name)

	todos, ok := s.Table("todos")
	require.True(t, ok)
	owner := todos.Column("ownerId")
	require.NotNil(t, owner.ForeignKey)
	assert.Equal(t, "users", owner.ForeignKey.TargetTable)
	assert.Equal(t, "id", owner.ForeignKey.TargetColumn)
}

func TestLoad_UnresolvedReference(t *testing.T) {
	doc := Document{
		Name: "app",
		Tables: []TableDoc{
			{
				Name: "todos",
				Columns: []ColumnDoc{
					{Name: "id", Kind: "integer", PrimaryKey: true},
					{Name: "ownerId", Kind: "integer", Reference: &ReferenceDoc{Table: "users", Column: "id"}},
				},
			},
		},
	}
	_, err := Build(doc)
	assert.ErrorIs(t, err, mistfallerr.ErrUnresolvedRef)
}

func TestLoad_UnknownKind(t *testing.T) {
	doc := Document{
		Name: "app",
		Tables: []TableDoc{
			{Name: "t", Columns: []ColumnDoc{{Name: "id", Kind: "nonsense", PrimaryKey: true}}},
		},
	}
	_, err := Build(doc)
	assert.ErrorIs(t, err, mistfallerr.ErrSchema)
}

func TestLoad_UnrecognizedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a schema"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, mistfallerr.ErrSchema)
}
