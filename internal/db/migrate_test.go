package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_SortedAndEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])
	assert.Contains(t, names, "0002_email_verified.sql")

	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestInitMigration_HasConstraints(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	sql := string(body)

	for _, want := range []string{
		"memberships_one_manager",
		"invites_one_pending",
		"orders_business_number_key",
		"order_seq",
	} {
		assert.True(t, strings.Contains(sql, want), "missing %s", want)
	}
}
