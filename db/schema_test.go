package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaSQLContainsAllTables(t *testing.T) {
	sql := SchemaSQL()
	for _, table := range []string{
		"whoop_oauth_tokens",
		"whoop_user_profile",
		"whoop_body_measurement",
		"whoop_cycle",
		"whoop_recovery",
		"whoop_sleep",
		"whoop_workout",
	} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
	// The token table enforces its singleton row.
	assert.Contains(t, sql, "CHECK (id = 1)")
}

func TestInitSchemaExecutesEveryStatement(t *testing.T) {
	conn := &recordingConn{}
	require.NoError(t, InitSchema(context.Background(), conn))
	assert.Len(t, conn.calls, len(schemaStatements))

	// Each statement must stand alone: pgx sends them one at a time.
	for _, call := range conn.calls {
		assert.False(t, strings.Contains(call.sql, ";"), "statement contains a separator: %s", call.sql)
	}
}

func TestInitSchemaStopsOnError(t *testing.T) {
	conn := &recordingConn{execErr: errors.New("permission denied")}
	err := InitSchema(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
