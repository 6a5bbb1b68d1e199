package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/isvd/blobstore"
	"github.com/hupe1980/isvd/blobstore/minio"
	"github.com/hupe1980/isvd/blobstore/s3"
	"github.com/hupe1980/isvd/internal/config"
)

// openStore builds the blob store of a storage config. The none backend
// returns a nil store.
func openStore(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return blobstore.NewMemoryStore(), nil
	case config.BackendLocal:
		return blobstore.NewLocalStore(cfg.Path), nil
	case config.BackendS3:
		return openS3(ctx, cfg)
	case config.BackendMinio:
		return openMinio(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func openS3(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	store := s3.NewStore(client, cfg.Bucket, cfg.Prefix)
	if cfg.DynamoDBTable == "" {
		return store, nil
	}

	baseURI := "s3://" + cfg.Bucket
	if p := strings.Trim(cfg.Prefix, "/"); p != "" {
		baseURI += "/" + p
	}
	return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, baseURI), nil
}

func openMinio(cfg config.StorageConfig) (blobstore.BlobStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}
