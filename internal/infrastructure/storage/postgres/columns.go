package postgres

import (
	"reflect"
	"slices"
	"sync"

	"github.com/Masterminds/squirrel"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ExtractDBColumns lists the "db" tags of T, descending into embedded
// structs. Call it once per type at repository construction.
func ExtractDBColumns[T any](exclude ...string) []string {
	var zero T
	cols := make([]string, 0)
	for _, f := range fieldsOf(reflect.TypeOf(zero)) {
		if !slices.Contains(exclude, f.column) {
			cols = append(cols, f.column)
		}
	}
	return cols
}

type dbField struct {
	index  []int
	column string
}

var fieldCache sync.Map // map[reflect.Type][]dbField

func fieldsOf(t reflect.Type) []dbField {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]dbField)
	}

	fields := make([]dbField, 0)
	if t.Kind() == reflect.Struct {
		for _, sf := range reflect.VisibleFields(t) {
			if sf.Anonymous || !sf.IsExported() {
				continue
			}
			tag := sf.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, dbField{index: sf.Index, column: tag})
		}
	}

	fieldCache.Store(t, fields)
	return fields
}

// StructToMap converts a struct to a column map using "db" tags. Only the
// listed columns are kept when columns is non-empty.
func StructToMap(v any, columns ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	fields := fieldsOf(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		if len(columns) > 0 && !slices.Contains(columns, f.column) {
			continue
		}
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}
