// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package secrets retrieves configuration secrets from AWS Secrets
// Manager and caches them in memory for the lifetime of the process.
//
// # Basic Usage
//
// Construct a [Fetcher] over a Secrets Manager client, wrap it in a
// [Cache], and ask the cache for secrets by their short logical id:
//
//	cli, err := secrets.NewClient(ctx)
//	if err != nil {
//	   log.Fatal().Err(err).Msg("creating secrets client")
//	}
//	cache := secrets.NewCache(secrets.CacheConfig{
//	   Fetcher: secrets.NewFetcher(secrets.FetcherConfig{Client: cli}),
//	})
//	v, ok := cache.Get(ctx, "api-keys")
//
// Secret ids are qualified with a prefix and the deployment environment
// before they are looked up in the store, so "api-keys" in the staging
// environment resolves to the store entry "strands-agent-staging-api-keys".
// Identical ids in different environments never collide.
//
// Secret unavailability is never an error here. Every failure mode of
// the store (missing secret, denied access, service fault, network
// fault, unsupported binary payload) is logged and reported as a plain
// "absent" result, and callers fall back to environment variables via
// [Cache.Credentials] or their own defaults via [Cache.Lookup]. Outside
// of Lambda, when no AWS access key is present in the environment, the
// store is never contacted at all.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// Defaults used when the corresponding config fields or environment
// variables are unset.
const (
	DefaultPrefix      = "strands-agent"
	DefaultEnvironment = "development"
	DefaultRegion      = "us-east-1"
	DefaultTimeout     = 5 * time.Second
)

// rawKey is the key under which a non-JSON secret payload is reported.
const rawKey = "value"

// IsLambdaEnvironment reports whether the process is running inside an
// AWS Lambda execution environment.
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// Environment returns the name of the deployment environment
// (development, staging, production), as set by the ENVIRONMENT
// variable. It defaults to "development".
func Environment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return DefaultEnvironment
}

// Region returns the AWS region to use for store calls, as set by
// AWS_DEFAULT_REGION. It defaults to "us-east-1".
func Region() string {
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return DefaultRegion
}

// A Value is the parsed payload of a secret. Values installed in a
// cache are shared between callers and must not be modified.
type Value map[string]any

// SecretsAPI is the subset of the Secrets Manager API surface used by a
// Fetcher. It is satisfied by *secretsmanager.Client.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewClient creates a Secrets Manager client using the default AWS
// credential chain and the region reported by Region.
func NewClient(ctx context.Context) (*secretsmanager.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(Region()))
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// FetcherConfig is the configuration for a Fetcher.
type FetcherConfig struct {
	// Client is used to call the store. It must be non-nil.
	Client SecretsAPI

	// Prefix is prepended (with the environment) to secret ids when
	// resolving store names. If empty, DefaultPrefix is used.
	Prefix string

	// Timeout bounds each store call. If zero or negative, a default
	// value is used.
	Timeout time.Duration

	// Log is where fetch failures are reported. If nil, logs are
	// discarded.
	Log *zerolog.Logger
}

func (c FetcherConfig) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

func (c FetcherConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c FetcherConfig) log() zerolog.Logger {
	if c.Log == nil {
		return zerolog.Nop()
	}
	return *c.Log
}

// A Fetcher fetches named secrets from the store. It does not cache;
// wrap it in a [Cache] for that.
type Fetcher struct {
	client  SecretsAPI
	prefix  string
	timeout time.Duration
	log     zerolog.Logger
}

// NewFetcher constructs a fetcher with the given configuration.
// The Client of the configuration must be set.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Client == nil {
		panic("secrets: no store client is set")
	}
	return &Fetcher{
		client:  cfg.Client,
		prefix:  cfg.prefix(),
		timeout: cfg.timeout(),
		log:     cfg.log(),
	}
}

// Name returns the fully-qualified store name for the given secret id,
// scoped to the fetcher's prefix and the current environment.
func (f *Fetcher) Name(id string) string {
	return f.prefix + "-" + Environment() + "-" + id
}

// Fetch retrieves the named secret from the store and reports whether a
// value was obtained. Fetch never fails with an error: every failure
// mode resolves to ok == false plus a log record, so that callers can
// always recover via a fallback source.
//
// Outside of Lambda, when AWS_ACCESS_KEY_ID is not set, the store is
// assumed to be unreachable or unwanted and Fetch reports false without
// a network call.
func (f *Fetcher) Fetch(ctx context.Context, id string) (Value, bool) {
	if !IsLambdaEnvironment() && os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		f.log.Debug().Str("secret", id).Msg("not in Lambda and no AWS credentials, skipping store")
		return nil, false
	}

	name := f.Name(id)
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := f.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		switch classify(err) {
		case failNotFound:
			f.log.Warn().Str("secret", name).Msg("secret not found")
		case failAccessDenied:
			f.log.Warn().Str("secret", name).Msg("access denied to secret")
		case failStore:
			f.log.Error().Err(err).Str("secret", name).Msg("error getting secret")
		default: // failTransport
			f.log.Error().Err(err).Str("secret", name).Msg("unexpected error getting secret")
		}
		return nil, false
	}

	if out.SecretString == nil {
		// Binary secrets are not supported.
		f.log.Warn().Str("secret", name).Msg("binary secret not supported")
		return nil, false
	}

	var v Value
	if err := json.Unmarshal([]byte(*out.SecretString), &v); err != nil || v == nil {
		// Not a JSON object; report the raw text under a fixed key.
		return Value{rawKey: *out.SecretString}, true
	}
	return v, true
}

// failure enumerates the failure modes of a store call.
type failure int

const (
	failNotFound     failure = iota // the named secret does not exist
	failAccessDenied                // the caller may not read the secret
	failStore                       // any other service fault
	failTransport                   // network or serialization fault
)

// classify maps an error from the store call to a failure kind.
func classify(err error) failure {
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return failNotFound
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ResourceNotFoundException":
			return failNotFound
		case "AccessDeniedException":
			return failAccessDenied
		}
		return failStore
	}
	return failTransport
}
