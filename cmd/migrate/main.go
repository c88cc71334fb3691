// Command migrate manages the billing schema with golang-migrate. The SQL
// files embedded from /migrations are used unless -path points elsewhere.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/dormitory/backend/internal/infrastructure/config"
	"github.com/dormitory/backend/internal/infrastructure/logger"
	"github.com/dormitory/backend/internal/infrastructure/migration"
	"github.com/dormitory/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Usage: migrate [-path dir] [-log-level level] <command> [args]

Schema commands (need DORM_DATABASE_* settings):
  up                    apply pending migrations
  down                  roll back every migration
  step <n>              apply n migrations, negative n rolls back
  goto <version>        migrate up or down to version
  version               print the applied version
  force <version>       record version without running SQL (dirty state recovery)
  drop -confirm         drop every object in the database

File commands:
  create <name> [desc]  write the next up/down pair into -path (default ./migrations)
  list                  list migrations in the source
`

var errUsage = errors.New("invalid arguments")

// schemaCommands run against a live database through the Migrator.
var schemaCommands = map[string]func(m *migration.Migrator, log *zap.Logger, args []string) error{
	"up":   func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() },
	"down": func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() },
	"step": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"goto": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := intArg(args)
		if err != nil || v < 0 {
			return errUsage
		}
		return m.GoTo(uint(v))
	},
	"force": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		status, err := m.Status()
		if err != nil {
			return err
		}
		if !status.Applied {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Schema version", zap.Uint("version", status.Version), zap.Bool("dirty", status.Dirty))
		return nil
	},
	"drop": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		if len(args) == 0 || (args[0] != "-confirm" && args[0] != "--confirm") {
			return fmt.Errorf("%w: drop needs -confirm", errUsage)
		}
		return m.Drop()
	},
}

func main() {
	path := flag.String("path", "", "migrations directory; defaults to the embedded set")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(command, args, *path, log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func run(command string, args []string, path string, log *zap.Logger) error {
	switch command {
	case "create":
		return create(args, path, log)
	case "list":
		return list(path, log)
	}

	fn, ok := schemaCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if path != "" {
		m, err = migration.NewFromDir(db, path, log)
	} else {
		m, err = migration.New(db, migrations.FS, log)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m, log, args)
}

func create(args []string, path string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create needs a name", errUsage)
	}
	if path == "" {
		path = "migrations"
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(path, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func list(path string, log *zap.Logger) error {
	var fsys fs.FS = migrations.FS
	if path != "" {
		fsys = os.DirFS(path)
	}
	found, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	log.Info("Migrations", zap.Int("count", len(found)))
	for _, m := range found {
		fmt.Printf("%s up=%t down=%t\n", m.BaseName(), m.HasUp, m.HasDown)
	}
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}
