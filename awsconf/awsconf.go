// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package awsconf bootstraps the AWS configuration for the agent.
//
// Credentials are resolved through the secrets cache when one is
// provided (store secret first, environment variables second); when
// neither source is complete, the SDK's default credential chain is
// left in charge. Either way the configured region is applied, so that
// service clients created from the result never guess.
package awsconf

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/strandslabs/agentd/secrets"
)

// Config is the configuration for Load.
type Config struct {
	// Secrets, if non-nil, supplies agent credentials via its
	// Credentials chain.
	Secrets *secrets.Cache

	// Region overrides the region from the environment.
	Region string

	// Log is where bootstrap progress is reported. If nil, logs are
	// discarded.
	Log *zerolog.Logger
}

func (c Config) region() string {
	if c.Region != "" {
		return c.Region
	}
	return secrets.Region()
}

func (c Config) log() zerolog.Logger {
	if c.Log == nil {
		return zerolog.Nop()
	}
	return *c.Log
}

// Load builds an aws.Config for the agent's service clients.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	log := cfg.log()
	region := cfg.region()

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.Secrets != nil {
		if cr := cfg.Secrets.Credentials(ctx); cr.Complete() {
			if cr.Region != "" {
				opts[0] = config.WithRegion(cr.Region)
			}
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cr.AccessKeyID, cr.SecretAccessKey, "")))
			log.Info().Msg("AWS credentials resolved from configuration")
		} else {
			log.Info().Msg("no configured AWS credentials, using default chain")
		}
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

// STSAPI is the subset of the STS API surface used by Verify.
// It is satisfied by *sts.Client.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Verify checks that the configured credentials resolve to an AWS
// identity and reports whether they do. Failure is logged, not fatal:
// the process may still serve requests whose handlers do not need AWS.
func Verify(ctx context.Context, cli STSAPI, log zerolog.Logger) bool {
	out, err := cli.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Warn().Err(err).Msg("no AWS credentials found, check your configuration")
		return false
	}
	log.Info().Str("arn", aws.ToString(out.Arn)).Msg("AWS credentials verified")
	return true
}
