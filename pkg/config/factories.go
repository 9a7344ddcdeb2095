package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/content"
	contentFs "github.com/marmos91/dittostore/pkg/content/fs"
	contentMemory "github.com/marmos91/dittostore/pkg/content/memory"
	contentS3 "github.com/marmos91/dittostore/pkg/content/s3"
	"github.com/marmos91/dittostore/pkg/directory"
	dirBadger "github.com/marmos91/dittostore/pkg/directory/badger"
	dirMemory "github.com/marmos91/dittostore/pkg/directory/memory"
	"github.com/mitchellh/mapstructure"
)

// CreateContentStore creates a content store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "filesystem": Uses pkg/content/fs (local filesystem storage)
//   - "memory": Uses pkg/content/memory (ephemeral, development and tests)
//   - "s3": Uses pkg/content/s3 (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Content store configuration
//
// Returns:
//   - content.Store: Initialized content store
//   - error: Configuration or initialization error
func CreateContentStore(ctx context.Context, cfg *ContentConfig) (content.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		return contentMemory.New(ctx)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-based content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	type FilesystemOptions struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemOptions
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentFs.New(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}
	return store, nil
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	type S3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3Options
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint support for MinIO, Localstack, and friends
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, default credential chain otherwise
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for S3-compatible endpoints
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := contentS3.New(ctx, contentS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// CreateDirectory creates a directory store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/directory/memory (in-memory, ephemeral)
//   - "badger": Uses pkg/directory/badger (BadgerDB, persistent)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Directory store configuration
//
// Returns:
//   - directory.Directory: Initialized directory store
//   - error: Configuration or initialization error
func CreateDirectory(ctx context.Context, cfg *DirectoryConfig) (directory.Directory, error) {
	switch cfg.Type {
	case "memory":
		return dirMemory.New(ctx, dirMemory.Config{Owner: cfg.RootOwner})
	case "badger":
		return createBadgerDirectory(ctx, cfg.Badger, cfg.RootOwner)
	default:
		return nil, fmt.Errorf("unknown directory store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerDirectory creates a BadgerDB-backed persistent directory.
func createBadgerDirectory(ctx context.Context, options map[string]any, rootOwner []string) (directory.Directory, error) {
	type BadgerOptions struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeOpts BadgerOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger directory options: %w", err)
	}
	if storeOpts.Path == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger directory: path is required")
	}

	store, err := dirBadger.New(ctx, dirBadger.Config{
		Path:     storeOpts.Path,
		InMemory: storeOpts.InMemory,
		Owner:    rootOwner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}
	return store, nil
}

// CreateAuthManager creates an authentication provider based on configuration.
//
// Supported types:
//   - "anonymous": every request resolves to the anonymous identity
//   - "static": bearer tokens resolve against the configured token table
func CreateAuthManager(cfg *AuthConfig) (auth.Manager, error) {
	switch cfg.Type {
	case "anonymous":
		return auth.NewAnonymousManager(), nil
	case "static":
		entries := make([]auth.StaticToken, 0, len(cfg.Tokens))
		for token, identity := range cfg.Tokens {
			entries = append(entries, auth.StaticToken{
				Token:      token,
				Client:     identity.Client,
				Attributes: identity.Attributes,
			})
		}
		return auth.NewStaticTokenManager(entries), nil
	default:
		return nil, fmt.Errorf("unknown auth provider type: %q (supported: anonymous, static)", cfg.Type)
	}
}
