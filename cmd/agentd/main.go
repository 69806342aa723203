// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// agentd serves the strands agent HTTP API for local development.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/strandslabs/agentd/agent"
	"github.com/strandslabs/agentd/awsconf"
	"github.com/strandslabs/agentd/internal/version"
	"github.com/strandslabs/agentd/secrets"
	"github.com/strandslabs/agentd/server"
)

var (
	addr    = flag.String("addr", ":8000", "HTTP listen address")
	modelID = flag.String("model", "", "Bedrock model or inference profile id")
	debug   = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	// Load .env for local development; a no-op when the file is absent.
	godotenv.Load()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	ctx := context.Background()

	logger.Info().Str("version", version.Long()).Str("environment", secrets.Environment()).Msg("starting agentd")

	cli, err := secrets.NewClient(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating secrets client")
	}
	cache := secrets.NewCache(secrets.CacheConfig{
		Fetcher: secrets.NewFetcher(secrets.FetcherConfig{Client: cli, Log: &logger}),
		Prewarm: []string{secrets.CredentialsSecret},
		Log:     &logger,
	})
	expvar.Publish("secrets", cache.Metrics())

	awsCfg, err := awsconf.Load(ctx, awsconf.Config{Secrets: cache, Log: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("loading AWS configuration")
	}
	awsconf.Verify(ctx, sts.NewFromConfig(awsCfg), logger)

	a := agent.New(agent.Config{
		Runtime: bedrockruntime.NewFromConfig(awsCfg),
		ModelID: *modelID,
		Log:     &logger,
	})

	mux := http.NewServeMux()
	if _, err := server.New(server.Config{Agent: a, Secrets: cache, Mux: mux, Log: &logger}); err != nil {
		logger.Fatal().Err(err).Msg("creating server")
	}
	mux.Handle("GET /debug/vars", expvar.Handler())

	logger.Info().Str("addr", *addr).Msg("agent server listening")
	if err := http.ListenAndServe(*addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("serving HTTP")
	}
}
