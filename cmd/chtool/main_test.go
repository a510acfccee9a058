package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateDatabaseStmt(t *testing.T) {
	assert.Equal(t, `CREATE DATABASE IF NOT EXISTS "gateway"`, createDatabaseStmt("gateway"))
}

func TestSchemaTargetsConfiguredTables(t *testing.T) {
	var all string
	for _, stmt := range ddl {
		all += stmt + "\n"
	}
	for _, table := range []string{"users", "api_keys", "permissions", "access_logs"} {
		assert.True(t, strings.Contains(all, "CREATE TABLE IF NOT EXISTS "+table),
			"missing table %s", table)
	}
}
