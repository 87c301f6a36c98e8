package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/schema"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

func TestFilesExcludeSeed(t *testing.T) {
	names, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.NotContains(t, names, SeedFile)
	assert.Equal(t, "001_schema.surql", names[0])
}

// Every table and association table the server exposes must be defined,
// since SCHEMAFULL tables reject undefined fields.
func TestSchemaDefinesRegisteredTables(t *testing.T) {
	body := schemaText(t)

	for _, table := range schema.New().Tables() {
		assert.Contains(t, body, "DEFINE TABLE "+table.Name+" SCHEMAFULL;", table.Name)
		for _, f := range table.ColumnFields() {
			if f.Member() == "id" {
				continue
			}
			assert.Contains(t, body, "DEFINE FIELD "+f.Member()+" ON "+table.Name+" ", "%s.%s", table.Name, f.Member())
		}
		for _, tf := range table.AssociationFields() {
			assert.Contains(t, body, "DEFINE TABLE "+tf.Spec.Table+" SCHEMAFULL;")
			assert.Contains(t, body, "DEFINE FIELD "+tf.Spec.LocalKey+" ON "+tf.Spec.Table+" ")
			assert.Contains(t, body, "DEFINE FIELD "+tf.Spec.ForeignKey+" ON "+tf.Spec.Table+" ")
		}
		if table.SoftDeleteMember != "" {
			assert.Contains(t, body, "DEFINE FIELD deleted_at ON "+table.Name+" ", table.Name)
		}
	}
}

func TestSchemaDefinesFoldedSearchColumns(t *testing.T) {
	body := schemaText(t)

	for _, table := range schema.New().Tables() {
		for _, f := range table.Fields {
			sf, ok := f.(*xtable.StringField)
			if !ok || !sf.Flags().Has(xtable.BitSearch) {
				continue
			}
			assert.Contains(t, body, "DEFINE FIELD "+xtable.FoldedMember(sf.Member())+" ON "+table.Name+" TYPE option<string>;",
				"%s.%s", table.Name, sf.Member())
		}
	}
}

func schemaText(t *testing.T) string {
	t.Helper()
	names, err := Files()
	require.NoError(t, err)
	var sb strings.Builder
	for _, name := range names {
		body, err := Read(name)
		require.NoError(t, err)
		sb.WriteString(body)
	}
	return sb.String()
}

func TestSeedCoversEveryPermission(t *testing.T) {
	body, err := Read(SeedFile)
	require.NoError(t, err)

	for _, perm := range model.AllPermissions {
		assert.Contains(t, body, "UPSERT "+perm.RecordID()+" SET name = \""+string(perm)+"\"", perm)
	}
	assert.Contains(t, body, "UPSERT role:public ")
}
