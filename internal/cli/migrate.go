package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/internal/schema"
)

var (
	dryRun           bool
	allowDestructive bool
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Long: `Compare the live public schema with the users and todos tables this
build expects and apply the difference. Drops are refused unless
--allow-destructive is given.`,
		RunE: runMigrate,
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned SQL without applying it")
	cmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "Allow changes that drop tables, columns, indexes or constraints")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if appConfig == nil || appConfig.Database.URL == "" {
		return fmt.Errorf("database connection required: use --url, DATABASE_URL, or database.url in todoapi.yaml")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	log := logger.CLI()
	if verbose {
		log.Debugf("Migrating %s (dry run: %v)", redactURL(appConfig.Database.URL), dryRun)
	}

	result, err := schema.NewMigrator(appConfig.Database.URL).Migrate(ctx, schema.Options{
		DryRun:           dryRun,
		AllowDestructive: allowDestructive,
	})

	out := cmd.OutOrStdout()
	if errors.Is(err, schema.ErrDestructive) {
		fmt.Fprintln(out, "Refusing to apply destructive changes:")
		for _, d := range result.Destructive {
			fmt.Fprintf(out, "  - %s\n", d)
		}
		fmt.Fprintln(out, "Re-run with --allow-destructive to apply them.")
		return err
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if len(result.Statements) == 0 {
		fmt.Fprintln(out, "Schema is up to date")
		return nil
	}

	for _, stmt := range result.Statements {
		fmt.Fprintf(out, "%s;\n", stmt)
	}

	switch {
	case dryRun:
		fmt.Fprintf(out, "\n%d statements planned (dry run)\n", len(result.Statements))
		if len(result.Destructive) > 0 {
			fmt.Fprintf(out, "%d destructive changes would require --allow-destructive\n", len(result.Destructive))
		}
	case result.Applied:
		fmt.Fprintf(out, "\n%d statements applied\n", len(result.Statements))
	}
	return nil
}
