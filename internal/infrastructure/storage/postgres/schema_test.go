package postgres

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/domain/catalogs/warehouse"
	"lotkeeper/internal/domain/notifications"
)

var createTableRe = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)

func schemaColumns(t *testing.T) map[string]map[string]bool {
	t.Helper()

	tables := make(map[string]map[string]bool)
	for _, m := range createTableRe.FindAllStringSubmatch(Schema(), -1) {
		cols := make(map[string]bool)
		for _, line := range strings.Split(m[2], "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			name := fields[0]
			if name == "PRIMARY" || name == "CHECK" || strings.HasPrefix(name, "--") {
				continue
			}
			cols[name] = true
		}
		tables[m[1]] = cols
	}
	require.NotEmpty(t, tables)
	return tables
}

func TestSchema_CoversMappedColumns(t *testing.T) {
	tables := schemaColumns(t)

	cases := map[string][]string{
		"inv_lots":                        ExtractDBColumns[allocation.Lot](),
		"cat_materials":                   ExtractDBColumns[material.Material](),
		"cat_warehouses":                  ExtractDBColumns[warehouse.Warehouse](),
		"reg_stock_movements":             ExtractDBColumns[entity.Movement](),
		"sys_audit":                       ExtractDBColumns[audit.Entry](),
		"sys_notifications":               ExtractDBColumns[notifications.Notification]("read_at"),
		"sys_outbox":                      ExtractDBColumns[OutboxMessage](),
		"sys_idempotency":                 ExtractDBColumns[IdempotencyRecord](),
		"cat_material_strategy_overrides": ExtractDBColumns[material.StrategyOverride](),
	}

	for table, cols := range cases {
		t.Run(table, func(t *testing.T) {
			schemaCols, ok := tables[table]
			require.True(t, ok, "table %s missing from schema", table)
			for _, c := range cols {
				assert.True(t, schemaCols[c], "column %s.%s missing from schema", table, c)
			}
		})
	}
}

func TestSchema_Idempotent(t *testing.T) {
	for _, stmt := range strings.Split(Schema(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || (strings.HasPrefix(stmt, "--") && !strings.Contains(stmt, "CREATE")) {
			continue
		}
		assert.Contains(t, stmt, "IF NOT EXISTS", "statement is not repeatable: %s", stmt)
	}
}
