package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/isvd"
	"github.com/hupe1980/isvd/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "isvd",
		Short:        "Incremental SVD of distributed snapshot streams",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")
	addStorageFlags(root)

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// addStorageFlags registers the flags shared by run and inspect.
func addStorageFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("backend", "", "storage backend (none, memory, local, s3, minio)")
	fs.String("path", "", "root directory of the local backend")
	fs.String("base", "", "base name of the persisted run")
	fs.String("bucket", "", "bucket of the s3 and minio backends")
	fs.String("prefix", "", "key prefix inside the bucket")
	fs.String("region", "", "bucket region")
	fs.String("endpoint", "", "custom S3 endpoint or minio host:port")
	fs.String("dynamodb-table", "", "DynamoDB table for atomic CURRENT commits (s3 backend)")
}

// loadConfig reads the --config file, or the defaults when none is given,
// then applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	fs := cmd.Flags()
	for _, err := range []error{
		override(cmd, "log-level", fs.GetString, &cfg.Log.Level),
		override(cmd, "log-format", fs.GetString, &cfg.Log.Format),
		override(cmd, "backend", fs.GetString, &cfg.Storage.Backend),
		override(cmd, "path", fs.GetString, &cfg.Storage.Path),
		override(cmd, "base", fs.GetString, &cfg.Storage.Base),
		override(cmd, "bucket", fs.GetString, &cfg.Storage.Bucket),
		override(cmd, "prefix", fs.GetString, &cfg.Storage.Prefix),
		override(cmd, "region", fs.GetString, &cfg.Storage.Region),
		override(cmd, "endpoint", fs.GetString, &cfg.Storage.Endpoint),
		override(cmd, "dynamodb-table", fs.GetString, &cfg.Storage.DynamoDBTable),
	} {
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// override copies a flag value into dst when the flag was set.
func override[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func newLogger(cfg config.LogConfig) (*isvd.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if cfg.Format == "json" {
		return isvd.NewJSONLogger(level), nil
	}
	return isvd.NewTextLogger(level), nil
}
