package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching. Output for
// the operator goes to out; failures are returned rather than exiting.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("migrate: missing action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// Open without migrating; the action decides what happens to the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")
		return printVersion(database, out)

	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")
		return printVersion(database, out)

	case "status":
		return printStatus(database, out)

	case "version":
		v, err := versionArg(args, "version")
		if err != nil {
			return err
		}
		if err := database.MigrateTo(uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", v)
		return nil

	case "force":
		v, err := versionArg(args, "force")
		if err != nil {
			return err
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Forced migration version to %d\n", v)
		return nil

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("migrate: unknown action %q", action)
	}
}

func versionArg(args []string, action string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: scan-server migrate %s <version_number>", action)
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version number: %s", args[1])
	}
	return v, nil
}

func printVersion(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest version: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	if version < latest {
		fmt.Fprintf(out, "Pending migrations: %d\n", latest-version)
	}
	if dirty {
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "Run: scan-server migrate force <version> after inspecting the schema.")
	}
	return nil
}

// PrintMigrateHelp displays help for migrate commands
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: scan-server migrate <action> [args]

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show current and latest schema version
  version <n>        Migrate up or down to version n
  force <n>          Set the recorded version without running SQL (recovery only)
  help               Show this help
`)
}
