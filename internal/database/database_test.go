package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	err := classify("Database index `guild_progress_user_guild` already contains ['u1', 'g1'], with record `guild_progress:x`")
	assert.ErrorIs(t, err, ErrDuplicate)

	err = classify("Parse error: unexpected token")
	assert.ErrorIs(t, err, ErrQuery)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "", nil)

	assert.ErrorIs(t, err, ErrConnection)
}

func TestOpenSQL_SQLiteInMemory(t *testing.T) {
	db, err := OpenSQL(context.Background(), DriverSQLite, "file:opensql_test?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	defer CloseSQL(db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestFirstRecord(t *testing.T) {
	rec, err := firstRecord(statementResult("OK", []interface{}{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, "a", rec)

	_, err = firstRecord(statementResult("OK", []interface{}{}))
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err = firstRecord(statementResult("OK", float64(3)))
	require.NoError(t, err)
	assert.Equal(t, float64(3), rec)
}

func TestConfig_Endpoint(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: "8000"}

	assert.Equal(t, "ws://db.internal:8000", cfg.Endpoint())
}
