package testdb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/questline/api/internal/database"
)

type recordingDB struct {
	database.Database
	query string
	vars  map[string]interface{}
	err   error
}

func (r *recordingDB) Execute(_ context.Context, query string, vars map[string]interface{}) error {
	r.query = query
	r.vars = vars
	return r.err
}

func TestTxBuilder_NamespacesVariables(t *testing.T) {
	tb := NewTxBuilder()
	tb.Add("CREATE guild SET id = $id, name = $name", map[string]interface{}{"id": "g1", "name": "Smiths"})
	tb.Add("CREATE quest_guild SET guild = $id, guild_id = $id_suffix", map[string]interface{}{"id": "g2", "id_suffix": "x"})

	query, vars := tb.Build()

	assert.True(t, strings.HasPrefix(query, "BEGIN TRANSACTION;\n"))
	assert.True(t, strings.HasSuffix(query, "COMMIT TRANSACTION;"))
	assert.NotContains(t, query, "$id,")
	assert.Len(t, vars, 4)

	values := make([]interface{}, 0, len(vars))
	for name, v := range vars {
		assert.Contains(t, query, "$"+name)
		values = append(values, v)
	}
	assert.ElementsMatch(t, []interface{}{"g1", "Smiths", "g2", "x"}, values)
}

func TestTxBuilder_Empty(t *testing.T) {
	query, vars := NewTxBuilder().Build()

	assert.Empty(t, query)
	assert.Nil(t, vars)
}

func TestAtomicBatch_Execute(t *testing.T) {
	db := &recordingDB{}
	batch := NewAtomicBatch().
		Add("UPDATE contract SET status = 'finished'", nil).
		Add("DELETE idempotency_key WHERE key = $key", map[string]interface{}{"key": "k"})

	require.NoError(t, batch.Execute(context.Background(), db))

	assert.Equal(t, 2, batch.Len())
	assert.Contains(t, db.query, "UPDATE contract")
	assert.Contains(t, db.query, "DELETE idempotency_key")
	assert.Len(t, db.vars, 1)
}

func TestAtomicBatch_EmptyIsNoop(t *testing.T) {
	db := &recordingDB{err: errors.New("must not run")}

	assert.NoError(t, NewAtomicBatch().Execute(context.Background(), db))
	assert.Empty(t, db.query)
}
