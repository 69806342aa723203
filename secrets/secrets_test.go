// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package secrets_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/strandslabs/agentd/secrets"
	"github.com/strandslabs/agentd/secrets/secretstest"
)

// inLambda pins the environment so that the store gate is open and
// qualified names are deterministic for the duration of t.
func inLambda(t *testing.T) {
	t.Helper()
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "agentd-test")
	t.Setenv("ENVIRONMENT", "development")
}

// captureLog returns a logger writing JSON records to the returned
// buffer, one per line.
func captureLog() (*zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	return &logger, &buf
}

func logRecords(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// checkOneRecord verifies that buf holds exactly one log record at the
// given level.
func checkOneRecord(t *testing.T, buf *bytes.Buffer, level string) {
	t.Helper()
	recs := logRecords(buf)
	if len(recs) != 1 {
		t.Fatalf("Got %d log records, want 1: %q", len(recs), recs)
	}
	if want := `"level":"` + level + `"`; !strings.Contains(recs[0], want) {
		t.Errorf("Log record %q does not contain %s", recs[0], want)
	}
}

func TestQualifiedName(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	f := secrets.NewFetcher(secrets.FetcherConfig{Client: secretstest.NewStore()})
	if got, want := f.Name("foo"), "strands-agent-staging-foo"; got != want {
		t.Errorf("Name(foo): got %q, want %q", got, want)
	}

	t.Run("CustomPrefix", func(t *testing.T) {
		f := secrets.NewFetcher(secrets.FetcherConfig{
			Client: secretstest.NewStore(),
			Prefix: "otherapp",
		})
		if got, want := f.Name("foo"), "otherapp-staging-foo"; got != want {
			t.Errorf("Name(foo): got %q, want %q", got, want)
		}
	})

	t.Run("DefaultEnvironment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "")
		if got, want := f.Name("foo"), "strands-agent-development-foo"; got != want {
			t.Errorf("Name(foo): got %q, want %q", got, want)
		}
	})
}

func TestFetch(t *testing.T) {
	inLambda(t)
	ctx := context.Background()

	ss := secretstest.NewStore()
	ss.SetString("strands-agent-development-api-keys", `{"token":"hunter2","extra":"ok"}`)
	ss.SetString("strands-agent-development-plain", "not json at all")
	ss.SetBinary("strands-agent-development-blob", []byte{0xde, 0xad})
	ss.SetError("strands-agent-development-locked", secretstest.ErrAccessDenied)
	ss.SetError("strands-agent-development-broken", secretstest.ErrInternal)

	t.Run("JSONSecret", func(t *testing.T) {
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss})
		v, ok := f.Fetch(ctx, "api-keys")
		if !ok {
			t.Fatal("Fetch api-keys: got absent, want value")
		}
		want := secrets.Value{"token": "hunter2", "extra": "ok"}
		if diff := cmp.Diff(v, want); diff != "" {
			t.Errorf("Fetch api-keys (-got, +want):\n%s", diff)
		}
	})

	t.Run("PlainTextSecret", func(t *testing.T) {
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss})
		v, ok := f.Fetch(ctx, "plain")
		if !ok {
			t.Fatal("Fetch plain: got absent, want value")
		}
		want := secrets.Value{"value": "not json at all"}
		if diff := cmp.Diff(v, want); diff != "" {
			t.Errorf("Fetch plain (-got, +want):\n%s", diff)
		}
	})

	t.Run("BinarySecret", func(t *testing.T) {
		logger, buf := captureLog()
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss, Log: logger})
		if v, ok := f.Fetch(ctx, "blob"); ok {
			t.Errorf("Fetch blob: got %v, want absent", v)
		}
		checkOneRecord(t, buf, "warn")
	})

	t.Run("NotFound", func(t *testing.T) {
		logger, buf := captureLog()
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss, Log: logger})
		if v, ok := f.Fetch(ctx, "nonesuch"); ok {
			t.Errorf("Fetch nonesuch: got %v, want absent", v)
		}
		checkOneRecord(t, buf, "warn")
	})

	t.Run("AccessDenied", func(t *testing.T) {
		logger, buf := captureLog()
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss, Log: logger})
		if v, ok := f.Fetch(ctx, "locked"); ok {
			t.Errorf("Fetch locked: got %v, want absent", v)
		}
		checkOneRecord(t, buf, "warn")
	})

	t.Run("StoreFault", func(t *testing.T) {
		logger, buf := captureLog()
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss, Log: logger})
		if v, ok := f.Fetch(ctx, "broken"); ok {
			t.Errorf("Fetch broken: got %v, want absent", v)
		}
		checkOneRecord(t, buf, "error")
	})

	t.Run("TransportFault", func(t *testing.T) {
		down := secretstest.NewStore()
		down.Fail(errors.New("connection reset by peer"))
		logger, buf := captureLog()
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: down, Log: logger})
		if v, ok := f.Fetch(ctx, "anything"); ok {
			t.Errorf("Fetch anything: got %v, want absent", v)
		}
		checkOneRecord(t, buf, "error")
	})
}

func TestFetchGate(t *testing.T) {
	ctx := context.Background()

	t.Run("LocalNoCredentials", func(t *testing.T) {
		t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
		t.Setenv("AWS_ACCESS_KEY_ID", "")

		ss := secretstest.NewStore()
		ss.SetString("strands-agent-development-api-keys", `{"token":"hunter2"}`)
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss})

		if v, ok := f.Fetch(ctx, "api-keys"); ok {
			t.Errorf("Fetch api-keys: got %v, want absent", v)
		}
		if n := ss.Calls(); n != 0 {
			t.Errorf("Store calls: got %d, want 0", n)
		}
	})

	t.Run("LocalWithCredentials", func(t *testing.T) {
		t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
		t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
		t.Setenv("ENVIRONMENT", "development")

		ss := secretstest.NewStore()
		ss.SetString("strands-agent-development-api-keys", `{"token":"hunter2"}`)
		f := secrets.NewFetcher(secrets.FetcherConfig{Client: ss})

		if _, ok := f.Fetch(ctx, "api-keys"); !ok {
			t.Error("Fetch api-keys: got absent, want value")
		}
		if n := ss.Calls(); n != 1 {
			t.Errorf("Store calls: got %d, want 1", n)
		}
	})
}
