package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/roundtable/config"
	"github.com/BaSui01/roundtable/internal/migration"
)

// =============================================================================
// 数据库迁移命令
// =============================================================================

// runMigrate 解析公共参数后交给 migration.CLI 分发子命令
func runMigrate(args []string) error {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage()
		if len(args) < 1 {
			return fmt.Errorf("missing subcommand")
		}
		return nil
	}
	sub := args[0]

	fs := flag.NewFlagSet("migrate "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	verbose := fs.Bool("verbose", false, "Log migration steps")
	positional, rest := splitPositional(args[1:])
	if err := fs.Parse(rest); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return migration.NewCLI(migrator).Execute(ctx, sub, positional)
}

// splitPositional 分出开头的位置参数，允许 "goto 2 --config x" 的写法。
// 负数（steps -1）视为位置参数。
func splitPositional(args []string) (positional, rest []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") && !isNumber(a) {
			return args[:i:i], args[i:]
		}
	}
	return args, nil
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// createMigrator --db-type 与 --db-url 同时给出时直接使用，否则从配置文件读取
func createMigrator(configPath, dbType, dbURL string, logger *zap.Logger) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, logger)
	}

	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  roundtable migrate <subcommand> [options] [args]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  reset       Rollback all migrations
  steps <n>   Apply (n > 0) or rollback (n < 0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  status      Show migration status
  version     Show current migration version
  info        Show migration summary

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)
  --verbose           Log migration steps

Examples:
  roundtable migrate up --config /etc/roundtable/config.yaml
  roundtable migrate goto 1 --db-type sqlite --db-url "file:roundtable.db?_pragma=foreign_keys(1)"
  roundtable migrate status`)
}
