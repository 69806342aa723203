// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package secretstest implements an in-memory stand-in for the AWS
// Secrets Manager API for unit tests with the testing package.
//
// # Usage
//
//	// Construct a store and add some secrets by their store names.
//	ss := secretstest.NewStore()
//	ss.SetString("strands-agent-development-api-keys", `{"token":"ok"}`)
//
//	// Hand it to a fetcher in place of the real client.
//	f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss})
package secretstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// ErrAccessDenied is a ready-made store error equivalent to the one the
// service reports when IAM denies a GetSecretValue call.
var ErrAccessDenied error = &smithy.GenericAPIError{
	Code: "AccessDeniedException", Message: "access denied",
}

// ErrInternal is a ready-made store error for an unclassified service
// fault.
var ErrInternal error = &smithy.GenericAPIError{
	Code: "InternalServiceError", Message: "service unavailable",
}

// Store is an in-memory implementation of the GetSecretValue operation.
// Secrets are keyed by their fully-qualified store name, not by the
// short logical id. The zero value is empty and ready for use.
type Store struct {
	mu      sync.Mutex
	strings map[string]string
	binary  map[string][]byte
	errs    map[string]error
	err     error
	calls   int
}

// NewStore constructs a new empty store.
func NewStore() *Store { return new(Store) }

// SetString installs a textual secret under the given store name.
func (s *Store) SetString(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strings == nil {
		s.strings = make(map[string]string)
	}
	s.strings[name] = value
}

// SetBinary installs a binary secret under the given store name.
func (s *Store) SetBinary(name string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binary == nil {
		s.binary = make(map[string][]byte)
	}
	s.binary[name] = value
}

// SetError arranges for lookups of the given store name to fail with
// err.
func (s *Store) SetError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[string]error)
	}
	s.errs[name] = err
}

// Fail arranges for every call to fail with err, simulating a store
// outage. A nil err restores normal service.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls reports how many GetSecretValue calls the store has served.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// GetSecretValue implements the corresponding API operation over the
// store's in-memory state. Unknown names report a
// ResourceNotFoundException as the real service does.
func (s *Store) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	name := aws.ToString(params.SecretId)
	if err, ok := s.errs[name]; ok {
		return nil, err
	}
	if v, ok := s.strings[name]; ok {
		return &secretsmanager.GetSecretValueOutput{
			Name:         aws.String(name),
			SecretString: aws.String(v),
		}, nil
	}
	if v, ok := s.binary[name]; ok {
		return &secretsmanager.GetSecretValueOutput{
			Name:         aws.String(name),
			SecretBinary: v,
		}, nil
	}
	return nil, &types.ResourceNotFoundException{
		Message: aws.String("Secrets Manager can't find the specified secret."),
	}
}
