// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package secrets

import (
	"context"
	"os"
)

// CredentialsSecret is the logical id of the secret holding AWS
// credentials for the agent.
const CredentialsSecret = "aws-credentials"

// Keys of the credentials secret payload.
const (
	keyAccessKeyID     = "aws_access_key_id"
	keySecretAccessKey = "aws_secret_access_key"
	keyRegion          = "aws_region"
)

// Credentials are AWS credentials for the agent. Any field may be empty
// when no source could supply it; detecting that is the caller's
// responsibility.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Complete reports whether both key fields are populated.
func (c Credentials) Complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// credentialSource yields credentials and reports whether they are
// usable. Sources are polled in order; the first usable result wins.
type credentialSource func(context.Context) (Credentials, bool)

// Credentials returns AWS credentials for the agent, preferring the
// aws-credentials secret in the store and falling back silently to
// environment variables. The fallback is unconditional: no error is
// reported even when both sources are empty.
func (c *Cache) Credentials(ctx context.Context) Credentials {
	sources := []credentialSource{c.storeCredentials, envCredentials}

	var cr Credentials
	for _, src := range sources {
		if got, ok := src(ctx); ok {
			cr = got
			break
		}
	}
	return cr
}

// storeCredentials reads credentials from the aws-credentials secret.
// An absent or incomplete secret is not usable; partial values from the
// store are never mixed with environment values.
func (c *Cache) storeCredentials(ctx context.Context) (Credentials, bool) {
	v, ok := c.Get(ctx, CredentialsSecret)
	if !ok {
		return Credentials{}, false
	}
	cr := Credentials{
		AccessKeyID:     stringField(v, keyAccessKeyID),
		SecretAccessKey: stringField(v, keySecretAccessKey),
		Region:          stringField(v, keyRegion),
	}
	if !cr.Complete() {
		return Credentials{}, false
	}
	if cr.Region == "" {
		cr.Region = Region()
	}
	return cr, true
}

// envCredentials reads credentials from the process environment. It is
// the terminal source and always reports usable, even when the key
// fields are empty.
func envCredentials(context.Context) (Credentials, bool) {
	return Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Region:          Region(),
	}, true
}

func stringField(v Value, key string) string {
	s, _ := v[key].(string)
	return s
}
