package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/izavyalov-dev/recipebox/backup"
	"github.com/izavyalov-dev/recipebox/recipes"
)

func backupCmd() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Upload a JSON snapshot of all recipes to S3",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "s3-bucket", Usage: "S3 bucket (overrides BACKUP_S3_BUCKET)"},
			&cli.StringFlag{Name: "s3-prefix", Usage: "S3 key prefix (overrides BACKUP_S3_PREFIX)"},
			&cli.StringFlag{Name: "s3-region", Usage: "S3 region (overrides BACKUP_S3_REGION)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := cmd.String("s3-bucket"); v != "" {
				cfg.Backup.Bucket = v
			}
			if v := cmd.String("s3-prefix"); v != "" {
				cfg.Backup.Prefix = v
			}
			if v := cmd.String("s3-region"); v != "" {
				cfg.Backup.Region = v
			}
			if cfg.Backup.Bucket == "" {
				return fmt.Errorf("s3-bucket or BACKUP_S3_BUCKET required")
			}
			logger := newLogger(cfg, "recipesd.backup")

			be, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer be.close()

			uploader, err := backup.NewS3Uploader(ctx, backup.S3Config{
				Bucket: cfg.Backup.Bucket,
				Prefix: cfg.Backup.Prefix,
				Region: cfg.Backup.Region,
			})
			if err != nil {
				return err
			}

			store := recipes.NewStore(be.collection, recipes.WithTimeout(cfg.OperationTimeout), recipes.WithLogger(logger))
			uri, snap, err := backup.Run(ctx, store, uploader)
			if err != nil {
				return err
			}
			logger.Info("backup uploaded", "event", "backup_uploaded", "uri", uri, "count", snap.Count)
			return nil
		},
	}
}
