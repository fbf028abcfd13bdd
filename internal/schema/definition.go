package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/eleven-am/todoapi/internal/model"
)

// Column is a single column of the desired schema
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	PrimaryKey bool
	Unique     bool
	ForeignKey *ForeignKey
}

// ForeignKey references a column in another table
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete string
	OnUpdate string
}

// Index is a secondary index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Check is a named CHECK constraint
type Check struct {
	Name       string
	Expression string
}

// Table is the desired shape of one table
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
	Checks  []Check
}

// Desired returns the tables backing the application, parents first
func Desired() ([]Table, error) {
	return FromModels(model.User{}, model.Todo{})
}

// FromModels reads the dbdef tags of each model and orders the resulting
// tables so that referenced tables come before the tables pointing at them.
func FromModels(models ...interface{}) ([]Table, error) {
	tables := make(map[string]Table, len(models))
	for _, m := range models {
		t, err := FromModel(m)
		if err != nil {
			return nil, err
		}
		if _, dup := tables[t.Name]; dup {
			return nil, fmt.Errorf("table %s defined twice", t.Name)
		}
		tables[t.Name] = t
	}
	return sortTables(tables)
}

// FromModel builds a Table from a struct carrying db and dbdef tags.
// Table level attributes live on a blank field: `_ struct{} dbdef:"table:name;index:..."`.
func FromModel(m interface{}) (Table, error) {
	rt := reflect.TypeOf(m)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return Table{}, fmt.Errorf("model must be a struct, got %T", m)
	}

	var table Table
	var tableLevel map[string]string

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		def, hasDef := field.Tag.Lookup("dbdef")

		if field.Name == "_" {
			if hasDef {
				tableLevel = ParseTag(def)
			}
			continue
		}

		name := field.Tag.Get("db")
		if name == "" || name == "-" {
			continue
		}

		col, err := buildColumn(name, field.Type, ParseTag(def))
		if err != nil {
			return Table{}, fmt.Errorf("%s.%s: %w", rt.Name(), field.Name, err)
		}
		table.Columns = append(table.Columns, col)
	}

	table.Name = tableLevel["table"]
	if table.Name == "" {
		return Table{}, fmt.Errorf("%s has no table name", rt.Name())
	}
	if len(table.Columns) == 0 {
		return Table{}, fmt.Errorf("table %s has no columns", table.Name)
	}

	if err := applyTableLevel(&table, tableLevel); err != nil {
		return Table{}, fmt.Errorf("table %s: %w", table.Name, err)
	}

	return table, nil
}

func buildColumn(name string, goType reflect.Type, attrs map[string]string) (Column, error) {
	col := Column{Name: name}

	isPointer := goType.Kind() == reflect.Ptr
	if isPointer {
		goType = goType.Elem()
	}

	if t := attrs["type"]; t != "" {
		col.Type = t
	} else {
		mapped, err := postgresType(goType)
		if err != nil {
			return col, err
		}
		col.Type = mapped
	}

	col.PrimaryKey = hasFlag(attrs, "primary_key")
	col.Unique = hasFlag(attrs, "unique")
	col.Nullable = !col.PrimaryKey && (isPointer || !hasFlag(attrs, "not_null"))

	if def, ok := attrs["default"]; ok && def != "" {
		col.Default = &def
	}

	if ref := attrs["foreign_key"]; ref != "" {
		table, column, ok := strings.Cut(ref, ".")
		if !ok || table == "" || column == "" {
			return col, fmt.Errorf("foreign key must be table.column, got %q", ref)
		}
		col.ForeignKey = &ForeignKey{
			Table:    table,
			Column:   column,
			OnDelete: strings.ToUpper(attrs["on_delete"]),
			OnUpdate: strings.ToUpper(attrs["on_update"]),
		}
	}

	return col, nil
}

var timeType = reflect.TypeOf(time.Time{})

func postgresType(t reflect.Type) (string, error) {
	if t == timeType {
		return "timestamptz", nil
	}
	switch t.Kind() {
	case reflect.String:
		return "text", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Int, reflect.Int64:
		return "bigint", nil
	case reflect.Int32:
		return "integer", nil
	case reflect.Int16:
		return "smallint", nil
	case reflect.Float64:
		return "double precision", nil
	case reflect.Float32:
		return "real", nil
	}
	return "", fmt.Errorf("no postgres type for %s, set one with dbdef type", t)
}

func applyTableLevel(table *Table, attrs map[string]string) error {
	for _, kind := range []string{"index", "unique_index"} {
		defs, ok := attrs[kind]
		if !ok {
			continue
		}
		for _, def := range strings.Split(defs, ";") {
			parts := splitList(def)
			if len(parts) < 2 {
				return fmt.Errorf("%s needs a name and at least one column: %q", kind, def)
			}
			for _, c := range parts[1:] {
				if !table.hasColumn(c) {
					return fmt.Errorf("%s %s references unknown column %s", kind, parts[0], c)
				}
			}
			table.Indexes = append(table.Indexes, Index{
				Name:    parts[0],
				Columns: parts[1:],
				Unique:  kind == "unique_index",
			})
		}
	}

	if defs, ok := attrs["check"]; ok {
		for _, def := range strings.Split(defs, ";") {
			name, expr, found := strings.Cut(def, ",")
			name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
			if !found || name == "" || expr == "" {
				return fmt.Errorf("check needs a name and an expression: %q", def)
			}
			table.Checks = append(table.Checks, Check{Name: name, Expression: expr})
		}
	}

	return nil
}

func (t Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// primaryKey returns the primary key columns in declaration order
func (t Table) primaryKey() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func sortTables(tables map[string]Table) ([]Table, error) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	sorted := make([]Table, 0, len(tables))
	visited := make(map[string]bool)
	visiting := make(map[string]bool)

	var visit func(string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("circular foreign key dependency involving table %s", name)
		}
		visiting[name] = true

		for _, col := range tables[name].Columns {
			if col.ForeignKey == nil || col.ForeignKey.Table == name {
				continue
			}
			if _, ok := tables[col.ForeignKey.Table]; !ok {
				return fmt.Errorf("table %s references unknown table %s", name, col.ForeignKey.Table)
			}
			if err := visit(col.ForeignKey.Table); err != nil {
				return err
			}
		}

		visiting[name] = false
		visited[name] = true
		sorted = append(sorted, tables[name])
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
