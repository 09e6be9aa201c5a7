package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
)

type sampleRow struct {
	entity.BaseEntity
	Code    string  `db:"code"`
	Note    *string `db:"note"`
	Skipped string  `db:"-"`
	Plain   string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()
	assert.Equal(t, []string{"id", "version", "created_at", "updated_at", "code", "note"}, cols)

	cols = ExtractDBColumns[*sampleRow]("note", "version")
	assert.Equal(t, []string{"id", "created_at", "updated_at", "code"}, cols)
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	row := &sampleRow{
		BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3, CreatedAt: now, UpdatedAt: now},
		Code:       "WH-1",
		Skipped:    "x",
	}

	m := StructToMap(row)
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "WH-1", m["code"])
	assert.Contains(t, m, "note")
	assert.NotContains(t, m, "Skipped")
	assert.NotContains(t, m, "Plain")

	m = StructToMap(row, "id", "code")
	assert.Len(t, m, 2)

	assert.Nil(t, StructToMap(42))
}
