package cli

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/cache"
	"github.com/kent-id/athenaq/config"
	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/retry"
	"github.com/kent-id/athenaq/sdk/athena"
	"github.com/kent-id/athenaq/sdk/s3"
)

// loadAWSConfig resolves region and credentials, from the named profile if set and the
// default chain otherwise. Credentials are retrieved eagerly so a bad profile fails here.
func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, &AuthError{Profile: cfg.Profile, Err: err}
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, &AuthError{Profile: cfg.Profile, Err: err}
	}
	logging.Infof("AWS session created successfully (region: %s)", awsCfg.Region)
	return awsCfg, nil
}

// newEngine wires the Athena client, the optional result cache and the retry policy.
// It is a variable so tests can replace the remote side.
var newEngine = func(ctx context.Context, cfg *config.Config) (*athenaq.Engine, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	client := athena.NewFromConfig(awsCfg, athena.Config{
		Database:       cfg.Athena.Database,
		Workgroup:      cfg.Athena.Workgroup,
		Catalog:        cfg.Athena.Catalog,
		OutputLocation: cfg.Athena.OutputLocation,
	})
	return athenaq.NewEngine(client, engineOptions(cfg, s3.NewFromConfig(awsCfg))...), nil
}

func engineOptions(cfg *config.Config, checker cache.ExistenceChecker) []athenaq.Option {
	opts := []athenaq.Option{
		athenaq.WithRetrier(retry.NewRetrier(retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
		})),
		athenaq.WithPollInterval(cfg.Polling.Interval),
		athenaq.WithPollTimeout(cfg.Polling.Timeout),
	}
	if cfg.QueryPrefix.Enabled {
		opts = append(opts, athenaq.WithQueryPrefix(cfg.QueryPrefix.ToolName))
	}
	if cfg.Cache.Enabled {
		opts = append(opts,
			athenaq.WithCache(cache.NewFileStore(os.ExpandEnv(cfg.Cache.Directory), checker)),
			athenaq.WithCacheTTL(cfg.Cache.TTLSeconds),
		)
		logging.Infof("cache enabled (TTL: %ds, directory: %s)", cfg.Cache.TTLSeconds, cfg.Cache.Directory)
	}
	return opts
}
