package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/starford/isaz/internal"
	pkgconfig "github.com/starford/isaz/pkg/config"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runBackup(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunBackup(ctx,
		internal.WithConfig(cfg),
		internal.WithSingle(cmd.Bool("single")),
		internal.WithDryRun(cmd.Bool("dry-run")),
	)
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunWatch(ctx, internal.WithConfig(cfg))
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunServe(ctx, internal.WithConfig(cfg))
}

func runInventory(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rows, err := internal.Inventory(ctx, cmd.Bool("remote"), internal.WithConfig(cfg))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ARCHIVE ID\tDESCRIPTION\tSIZE\tUPLOADED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			r.ArchiveID, r.Description, r.Size, r.UploadedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runIgnore(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("ignore: directory argument is required")
	}
	return internal.Ignore(dir, internal.WithConfig(cfg))
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
		Name:  "isaz",
		Usage: "Cold-storage backup of immutable media directories with snapshot-based change detection",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Reconcile every directory under the backup root and upload the changed ones",
				Action: runBackup,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "single",
						Usage: "Stop after the first directory that was backed up",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report decisions without packaging, uploading or writing status",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Run backup passes whenever the backup root changes",
				Action: runWatch,
			},
			{
				Name:   "serve",
				Usage:  "Serve the read-only reporting API",
				Action: runServe,
			},
			{
				Name:   "inventory",
				Usage:  "List uploaded archives from the local catalog",
				Action: runInventory,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Refresh the catalog from the vault inventory first (slow)",
					},
				},
			},
			{
				Name:      "ignore",
				Usage:     "Mark a directory as excluded from backup",
				ArgsUsage: "<directory>",
				Action:    runIgnore,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
