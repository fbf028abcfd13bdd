package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	_ "github.com/lib/pq"

	"github.com/eleven-am/todoapi/internal/logger"
)

// ErrDestructive is returned when a plan drops objects and destructive changes were not allowed
var ErrDestructive = errors.New("migration contains destructive changes")

// Options controls a migration run
type Options struct {
	DryRun           bool
	AllowDestructive bool
}

// Result describes a planned or applied migration
type Result struct {
	Statements  []string
	Changes     []atlas.Change
	Destructive []string
	Applied     bool
}

// Migrator brings a live database in line with the desired schema
type Migrator struct {
	url    string
	tables func() ([]Table, error)
	log    logger.Logger
	now    func() time.Time
}

// NewMigrator returns a migrator targeting the database at url
func NewMigrator(url string) *Migrator {
	return &Migrator{
		url:    url,
		tables: Desired,
		log:    logger.DB(),
		now:    time.Now,
	}
}

// Migrate plans the changes and applies them unless opts.DryRun is set
func (m *Migrator) Migrate(ctx context.Context, opts Options) (*Result, error) {
	tables, err := m.tables()
	if err != nil {
		return nil, fmt.Errorf("failed to build desired schema: %w", err)
	}

	live, err := sql.Open("postgres", m.url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer live.Close()

	if err := live.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.Open(live)
	if err != nil {
		return nil, fmt.Errorf("failed to create atlas driver: %w", err)
	}

	current, err := driver.InspectRealm(ctx, publicOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to inspect current schema: %w", err)
	}

	desired, err := m.desiredRealm(ctx, DDL(tables))
	if err != nil {
		return nil, err
	}

	changes, err := driver.RealmDiff(current, desired)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate diff: %w", err)
	}

	result := &Result{Changes: changes, Statements: []string{}}
	if len(changes) == 0 {
		m.log.Info("Schema is up to date")
		return result, nil
	}

	result.Statements, err = planStatements(ctx, driver, changes)
	if err != nil {
		return nil, err
	}
	_, result.Destructive = CountDestructiveChanges(changes)

	if opts.DryRun {
		return result, nil
	}

	if len(result.Destructive) > 0 && !opts.AllowDestructive {
		return result, fmt.Errorf("%w: %s", ErrDestructive, strings.Join(result.Destructive, ", "))
	}

	if err := driver.ApplyChanges(ctx, changes); err != nil {
		return result, fmt.Errorf("failed to apply changes: %w", err)
	}
	result.Applied = true

	m.log.Infof("Applied %d schema changes", len(changes))
	return result, nil
}

// desiredRealm executes ddl in a scratch database and inspects the outcome
func (m *Migrator) desiredRealm(ctx context.Context, ddl string) (*atlas.Realm, error) {
	_, adminDSN, err := parseDSN(m.url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	admin, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to admin database: %w", err)
	}
	defer admin.Close()

	tempName := fmt.Sprintf("temp_todoapi_%d", m.now().Unix())
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+quoteIdentifier(tempName)); err != nil {
		return nil, fmt.Errorf("failed to create temp database: %w", err)
	}
	defer func() {
		if _, err := admin.ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+quoteIdentifier(tempName)); err != nil {
			m.log.WithError(err).Warnf("Failed to drop temp database %s", tempName)
		}
	}()

	tempURL, err := withDatabase(m.url, tempName)
	if err != nil {
		return nil, err
	}

	temp, err := sql.Open("postgres", tempURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open temp database: %w", err)
	}
	defer temp.Close()

	if _, err := temp.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to execute DDL in temp database: %w", err)
	}

	driver, err := postgres.Open(temp)
	if err != nil {
		return nil, fmt.Errorf("failed to create atlas driver for temp database: %w", err)
	}

	realm, err := driver.InspectRealm(ctx, publicOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to inspect desired schema: %w", err)
	}
	return realm, nil
}

func publicOnly() *atlas.InspectRealmOption {
	return &atlas.InspectRealmOption{Schemas: []string{"public"}}
}

func planStatements(ctx context.Context, driver migrate.Driver, changes []atlas.Change) ([]string, error) {
	plan, err := driver.PlanChanges(ctx, "todoapi", changes)
	if err != nil {
		return nil, fmt.Errorf("failed to plan changes: %w", err)
	}

	statements := make([]string, len(plan.Changes))
	for i, change := range plan.Changes {
		statements[i] = change.Cmd
		if change.Comment != "" {
			statements[i] = fmt.Sprintf("-- %s\n%s", change.Comment, change.Cmd)
		}
	}
	return statements, nil
}

// IsDestructiveChange reports whether change drops a table, column, index or foreign key
func IsDestructiveChange(change atlas.Change) bool {
	switch c := change.(type) {
	case *atlas.DropTable, *atlas.DropColumn, *atlas.DropIndex, *atlas.DropForeignKey, *atlas.DropCheck:
		return true
	case *atlas.ModifyTable:
		for _, sub := range c.Changes {
			if IsDestructiveChange(sub) {
				return true
			}
		}
	}
	return false
}

// DescribeChange returns a one line summary of change
func DescribeChange(change atlas.Change) string {
	switch c := change.(type) {
	case *atlas.AddTable:
		return fmt.Sprintf("create table %s", c.T.Name)
	case *atlas.DropTable:
		return fmt.Sprintf("drop table %s", c.T.Name)
	case *atlas.ModifyTable:
		return fmt.Sprintf("modify table %s (%d changes)", c.T.Name, len(c.Changes))
	case *atlas.AddColumn:
		return fmt.Sprintf("add column %s", c.C.Name)
	case *atlas.DropColumn:
		return fmt.Sprintf("drop column %s", c.C.Name)
	case *atlas.ModifyColumn:
		return fmt.Sprintf("modify column %s", c.To.Name)
	case *atlas.AddIndex:
		return fmt.Sprintf("add index %s", c.I.Name)
	case *atlas.DropIndex:
		return fmt.Sprintf("drop index %s", c.I.Name)
	case *atlas.AddForeignKey:
		return fmt.Sprintf("add foreign key %s", c.F.Symbol)
	case *atlas.DropForeignKey:
		return fmt.Sprintf("drop foreign key %s", c.F.Symbol)
	case *atlas.AddCheck:
		return fmt.Sprintf("add check %s", c.C.Name)
	case *atlas.DropCheck:
		return fmt.Sprintf("drop check %s", c.C.Name)
	default:
		return fmt.Sprintf("change %T", change)
	}
}

// CountDestructiveChanges counts destructive changes and describes each.
// For a modified table the destructive sub-changes are listed individually.
func CountDestructiveChanges(changes []atlas.Change) (int, []string) {
	var descriptions []string
	for _, change := range changes {
		if !IsDestructiveChange(change) {
			continue
		}
		if mod, ok := change.(*atlas.ModifyTable); ok {
			for _, sub := range mod.Changes {
				if IsDestructiveChange(sub) {
					descriptions = append(descriptions, fmt.Sprintf("%s on %s", DescribeChange(sub), mod.T.Name))
				}
			}
			continue
		}
		descriptions = append(descriptions, DescribeChange(change))
	}
	return len(descriptions), descriptions
}
