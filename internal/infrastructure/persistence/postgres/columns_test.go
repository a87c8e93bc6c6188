package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The column-list consts are spliced between SELECT and FROM when queries are
// assembled. If either end of a list abuts an identifier character the
// generated SQL fuses tokens ("updated_atFROM orders") and every lookup
// fails at runtime, so both ends must be whitespace.
func TestColumnListsKeepTokenBoundaries(t *testing.T) {
	fused := `[A-Za-z0-9_"]FROM\b`

	queries := map[string]string{
		"order by id":        `SELECT` + orderColumns + `FROM orders WHERE id = $1`,
		"order by client id": `SELECT` + orderColumns + `FROM orders WHERE parent_id = $1 AND client_order_id = $2`,
		"order by session":   `SELECT` + orderColumns + `FROM orders WHERE checkout_session_id = $1 ORDER BY created_at`,
		"order by group":     `SELECT` + orderColumns + `FROM orders WHERE payment_group_id = $1 ORDER BY created_at`,
		"topup by id":        `SELECT` + topupColumns + `FROM topup_sessions WHERE id = $1`,
		"topup by session":   `SELECT` + topupColumns + `FROM topup_sessions WHERE checkout_session_id = $1`,
	}

	for name, stmt := range queries {
		assert.NotRegexp(t, fused, stmt, "%s: column list fuses into FROM", name)
		assert.Regexp(t, `^SELECT\s`, stmt, "%s: SELECT fuses into the first column", name)
	}
}
