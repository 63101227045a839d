package framedb

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// RunMigrateCommand implements the `uartmon migrate <action>` subcommand.
// It opens the database, performs one action, and exits the process with a
// nonzero status on failure.
func RunMigrateCommand(args []string, dbPath, migrationsDir string) {
	if len(args) == 0 {
		printMigrateHelp()
		os.Exit(1)
	}
	action, rest := args[0], args[1:]

	if action == "help" {
		printMigrateHelp()
		return
	}

	// The schema comes entirely from the migration files; NewDB creates
	// nothing on its own.
	database, err := NewDB(dbPath)
	if err != nil {
		log.Fatalf("Open database %s: %v", dbPath, err)
	}
	defer database.Close()

	if err := database.runMigrateAction(action, rest, migrationsDir); err != nil {
		log.Fatalf("migrate %s: %v", action, err)
	}
}

func (db *DB) runMigrateAction(action string, rest []string, migrationsDir string) error {
	switch action {
	case "up":
		return db.migrateUpCmd(migrationsDir)
	case "down":
		return db.migrateDownCmd(migrationsDir)
	case "status":
		return db.migrateStatusCmd(migrationsDir)
	case "version":
		if len(rest) == 0 {
			return errors.New("usage: uartmon migrate version <n>")
		}
		return db.migrateToCmd(migrationsDir, rest[0])
	case "force":
		if len(rest) == 0 {
			return errors.New("usage: uartmon migrate force <n>")
		}
		return db.migrateForceCmd(migrationsDir, rest[0])
	default:
		printMigrateHelp()
		return errors.New("unknown action")
	}
}

func (db *DB) migrateUpCmd(migrationsDir string) error {
	log.Println("Applying pending migrations...")
	if err := db.MigrateUp(migrationsDir); err != nil {
		return err
	}
	version, dirty, _ := db.MigrateVersion(migrationsDir)
	log.Printf("✓ Schema is at version %d (dirty: %v)", version, dirty)
	return nil
}

func (db *DB) migrateDownCmd(migrationsDir string) error {
	log.Println("Rolling back one migration...")
	if err := db.MigrateDown(migrationsDir); err != nil {
		return err
	}
	version, _, _ := db.MigrateVersion(migrationsDir)
	log.Printf("✓ Schema rolled back to version %d", version)
	return nil
}

func (db *DB) migrateStatusCmd(migrationsDir string) error {
	st, err := db.MigrationState(migrationsDir)
	if err != nil {
		return err
	}

	table := "missing"
	if st.Tracked {
		table = "present"
	}
	fmt.Printf("Schema version:  %d\n", st.Version)
	fmt.Printf("Latest on disk:  %d\n", st.Latest)
	fmt.Printf("Dirty:           %v\n", st.Dirty)
	fmt.Printf("Version table:   %s\n", table)
	if !st.Dirty && st.Latest > st.Version {
		fmt.Printf("Pending:         %d migration(s); run 'uartmon migrate up'\n", st.Latest-st.Version)
	}

	if st.Dirty {
		fmt.Println()
		fmt.Println("The last migration stopped partway through. Inspect the schema,")
		fmt.Println("repair it by hand, then record the version it matches with")
		fmt.Println("'uartmon migrate force <n>'.")
	}
	return nil
}

func (db *DB) migrateToCmd(migrationsDir, arg string) error {
	version, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return fmt.Errorf("version %q is not a number", arg)
	}

	log.Printf("Migrating schema to version %d...", version)
	if err := db.MigrateTo(migrationsDir, uint(version)); err != nil {
		return err
	}
	log.Printf("✓ Schema is at version %d", version)
	return nil
}

func (db *DB) migrateForceCmd(migrationsDir, arg string) error {
	version, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("version %q is not a number", arg)
	}

	fmt.Printf("This marks the schema as version %d without running any SQL.\n", version)
	fmt.Println("Only do this to recover from a dirty state, after repairing the schema by hand.")
	fmt.Print("Type y to continue: ")

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
	default:
		fmt.Println("Aborted.")
		return nil
	}

	if err := db.MigrateForce(migrationsDir, version); err != nil {
		return err
	}
	log.Printf("✓ Schema version forced to %d", version)
	return nil
}

func printMigrateHelp() {
	fmt.Println(`Manage the uartmon database schema.

Usage: uartmon migrate <action> [arguments]

Actions:
  up           apply every pending migration
  down         roll back the most recent migration
  status       show the schema version and pending migrations
  version <n>  migrate up or down to exactly version n
  force <n>    record version n without running SQL (dirty-state recovery)
  help         show this message

The database and migrations directory come from the uartmon flags:
  -db <path>           SQLite database file (default uartlink.db)
  -migrations <path>   migrations directory (default migrations)`)
}
