package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/mweide/shadowtwin/internal"
	pkgconfig "github.com/mweide/shadowtwin/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	params := internal.MigrationParams{
		RootFolderID:      cmd.String("root"),
		Recursive:         cmd.Bool("recursive"),
		DryRun:            cmd.Bool("dry-run"),
		CleanupFilesystem: cmd.Bool("cleanup"),
		Limit:             int(cmd.Int("limit")),
	}
	return internal.RunMigration(ctx, cfg, params)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "shadowtwin",
		Usage:  "Content-addressed artifact storage engine mirroring derived documents between a file store and a document database",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server (default)",
				Action: serve,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "migrate",
				Usage:  "Bulk-migrate file-store artifacts into the database",
				Action: migrate,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "root",
						Usage: "Folder id to scan (empty for the vault root)",
					},
					&cli.BoolFlag{
						Name:  "recursive",
						Usage: "Descend into subfolders",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would change without writing anything",
					},
					&cli.BoolFlag{
						Name:  "cleanup",
						Usage: "Delete migrated files and emptied companion folders",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Stop after N sources (0 = no limit)",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
