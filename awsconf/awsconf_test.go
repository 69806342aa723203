// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package awsconf_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/strandslabs/agentd/awsconf"
	"github.com/strandslabs/agentd/secrets"
	"github.com/strandslabs/agentd/secrets/secretstest"
)

func TestLoad(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "agentd-test")
	t.Setenv("ENVIRONMENT", "development")
	ctx := context.Background()

	t.Run("StoreCredentials", func(t *testing.T) {
		ss := secretstest.NewStore()
		ss.SetString("strands-agent-development-aws-credentials",
			`{"aws_access_key_id":"AKIASTORE","aws_secret_access_key":"store-secret","aws_region":"eu-west-1"}`)
		cache := secrets.NewCache(secrets.CacheConfig{
			Fetcher: secrets.NewFetcher(secrets.FetcherConfig{Client: ss}),
		})

		cfg, err := awsconf.Load(ctx, awsconf.Config{Secrets: cache})
		if err != nil {
			t.Fatalf("Load: unexpected error: %v", err)
		}
		if cfg.Region != "eu-west-1" {
			t.Errorf("Region: got %q, want eu-west-1", cfg.Region)
		}
		cr, err := cfg.Credentials.Retrieve(ctx)
		if err != nil {
			t.Fatalf("Retrieve credentials: unexpected error: %v", err)
		}
		if cr.AccessKeyID != "AKIASTORE" {
			t.Errorf("AccessKeyID: got %q, want AKIASTORE", cr.AccessKeyID)
		}
	})

	t.Run("RegionOverride", func(t *testing.T) {
		cfg, err := awsconf.Load(ctx, awsconf.Config{Region: "ap-southeast-2"})
		if err != nil {
			t.Fatalf("Load: unexpected error: %v", err)
		}
		if cfg.Region != "ap-southeast-2" {
			t.Errorf("Region: got %q, want ap-southeast-2", cfg.Region)
		}
	})

	t.Run("RegionDefault", func(t *testing.T) {
		t.Setenv("AWS_DEFAULT_REGION", "")
		t.Setenv("AWS_REGION", "")
		cfg, err := awsconf.Load(ctx, awsconf.Config{})
		if err != nil {
			t.Fatalf("Load: unexpected error: %v", err)
		}
		if cfg.Region != "us-east-1" {
			t.Errorf("Region: got %q, want us-east-1", cfg.Region)
		}
	})
}

type fakeSTS struct{ err error }

func (f fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:role/agentd"),
	}, nil
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	if !awsconf.Verify(ctx, fakeSTS{}, zerolog.Nop()) {
		t.Error("Verify: got false, want true")
	}
	if awsconf.Verify(ctx, fakeSTS{err: errors.New("expired token")}, zerolog.Nop()) {
		t.Error("Verify: got true, want false")
	}
}
