package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"authd/core"
)

var errUsage = errors.New("usage")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-database URL] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	dsn := flag.String("database", "", "PostgreSQL DSN (defaults to DATABASE_URL)")
	flag.Parse()

	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *dsn == "" {
		*dsn = core.Defaults().DatabaseURL
	}

	err := run(*dsn, flag.Args())
	switch {
	case errors.Is(err, errUsage):
		flag.Usage()
		os.Exit(2)
	case err != nil:
		log.Fatal(err)
	}
}

// run returns instead of exiting so the migrator is always closed.
func run(dsn string, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	verb := args[0]
	if verb != "up" && verb != "down" && verb != "version" {
		return errUsage
	}

	m, err := core.NewMigrator(dsn)
	if err != nil {
		return fmt.Errorf("failed to open migrator: %w", err)
	}
	defer m.Close()

	switch verb {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil {
		return fmt.Errorf("migrate %s failed: %w", verb, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Printf("schema version=%d dirty=%t", version, dirty)
	return nil
}
