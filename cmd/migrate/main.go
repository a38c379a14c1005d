package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/chrissnell/vitalseg/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbDriver       = flag.String("driver", "sqlite", "Database driver (sqlite)")
		dbDSN          = flag.String("dsn", "", "Database connection string")
		migrationDir   = flag.String("dir", "", "Migration directory (default: the built-in configuration schema)")
		migrationTable = flag.String("table", "schema_migrations", "Migration table name")
		command        = flag.String("command", "up", "Migration command: up, down, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		helpFlag       = flag.Bool("help", false, "Show help")
		debug          = flag.Bool("debug", false, "Turn on debugging output")
	)

	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	// Open database connection
	db, err := sql.Open(*dbDriver, *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test the connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Create migration provider
	var provider migrate.MigrationProvider
	if *migrationDir == "" {
		provider = migrate.NewFSProvider(config.Migrations, "migrations", *migrationTable, *dbDriver)
	} else {
		provider = migrate.NewFileProvider(*migrationDir, *migrationTable)
	}
	migrator := migrate.NewMigrator(db, provider, log.GetSugaredLogger())

	// Execute command
	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down":
		if *targetVersion == "" {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for down command\n")
			os.Exit(1)
		}
		target, convErr := strconv.Atoi(*targetVersion)
		if convErr != nil {
			log.Fatalf("Invalid target version: %v", convErr)
		}
		err = migrator.MigrateDown(target)
	case "to":
		if *targetVersion == "" {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for to command\n")
			os.Exit(1)
		}
		target, convErr := strconv.Atoi(*targetVersion)
		if convErr != nil {
			log.Fatalf("Invalid target version: %v", convErr)
		}
		err = migrator.MigrateTo(target)
	case "version":
		version, versionErr := migrator.GetCurrentVersion()
		if versionErr != nil {
			log.Fatalf("Failed to get current version: %v", versionErr)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		if err := showStatus(migrator); err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func showStatus(migrator *migrate.Migrator) error {
	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to read schema status: %w", err)
	}

	fmt.Printf("Current version: %d (latest known: %d)\n", status.Current, status.Latest)
	if status.Ahead() {
		fmt.Println("Warning: the database was migrated by a newer vitalseg build")
	}

	if len(status.Applied) > 0 {
		fmt.Println("\nApplied migrations:")
		for _, migration := range status.Applied {
			name := migration.Name
			if name == "" {
				name = "(unknown to this build)"
			}
			fmt.Printf("  %d: %s  applied %s\n", migration.Version, name, migration.AppliedAt)
		}
	}

	fmt.Printf("\nPending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
	}

	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -driver string     Database driver (default: sqlite)")
	fmt.Println("  -dsn string        Database connection string (required)")
	fmt.Println("  -dir string        Migration directory (default: built-in configuration schema)")
	fmt.Println("  -table string      Migration table name (default: schema_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -debug             Turn on debugging output")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn config.db -command up")
	fmt.Println("  migrate -dsn config.db -command down -target 5")
	fmt.Println("  migrate -dsn config.db -command status")
	fmt.Println("  migrate -dsn results.db -dir migrations/custom -table custom_migrations")
}
