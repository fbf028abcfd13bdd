package schema

import (
	"fmt"
	"strings"
)

// DDL renders CREATE statements for tables in the given order
func DDL(tables []Table) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		writeTable(&b, t)
	}
	return b.String()
}

func writeTable(b *strings.Builder, t Table) {
	var lines []string

	for _, c := range t.Columns {
		line := fmt.Sprintf("    %s %s", quoteIdentifier(c.Name), c.Type)
		if !c.Nullable {
			line += " NOT NULL"
		}
		if c.Default != nil {
			line += " DEFAULT " + *c.Default
		}
		lines = append(lines, line)
	}

	if pk := t.primaryKey(); len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)",
			quoteIdentifier(t.Name+"_pkey"), quoteList(pk)))
	}

	for _, c := range t.Columns {
		if c.Unique && !c.PrimaryKey {
			lines = append(lines, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)",
				quoteIdentifier(t.Name+"_"+c.Name+"_key"), quoteIdentifier(c.Name)))
		}
	}

	for _, c := range t.Columns {
		if c.ForeignKey == nil {
			continue
		}
		line := fmt.Sprintf("    CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdentifier(fmt.Sprintf("fk_%s_%s", t.Name, c.Name)),
			quoteIdentifier(c.Name),
			quoteIdentifier(c.ForeignKey.Table),
			quoteIdentifier(c.ForeignKey.Column))
		if c.ForeignKey.OnDelete != "" {
			line += " ON DELETE " + c.ForeignKey.OnDelete
		}
		if c.ForeignKey.OnUpdate != "" {
			line += " ON UPDATE " + c.ForeignKey.OnUpdate
		}
		lines = append(lines, line)
	}

	for _, chk := range t.Checks {
		lines = append(lines, fmt.Sprintf("    CONSTRAINT %s CHECK (%s)", quoteIdentifier(chk.Name), chk.Expression))
	}

	fmt.Fprintf(b, "CREATE TABLE %s (\n%s\n);\n", quoteIdentifier(t.Name), strings.Join(lines, ",\n"))

	for _, idx := range t.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		fmt.Fprintf(b, "CREATE %s %s ON %s (%s);\n",
			kind, quoteIdentifier(idx.Name), quoteIdentifier(t.Name), quoteList(idx.Columns))
	}
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
