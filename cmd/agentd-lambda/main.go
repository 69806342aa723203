// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// agentd-lambda adapts the strands agent HTTP API to AWS Lambda behind
// a Function URL or API Gateway.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog"
	"github.com/strandslabs/agentd/agent"
	"github.com/strandslabs/agentd/awsconf"
	"github.com/strandslabs/agentd/secrets"
	"github.com/strandslabs/agentd/server"
	"github.com/strandslabs/agentd/types/api"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "strands-agent-lambda").Logger()
	ctx := context.Background()

	cli, err := secrets.NewClient(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating secrets client")
	}
	cache := secrets.NewCache(secrets.CacheConfig{
		Fetcher: secrets.NewFetcher(secrets.FetcherConfig{Client: cli, Log: &logger}),
		Prewarm: []string{secrets.CredentialsSecret},
		Log:     &logger,
	})

	awsCfg, err := awsconf.Load(ctx, awsconf.Config{Secrets: cache, Log: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("loading AWS configuration")
	}

	a := agent.New(agent.Config{
		Runtime: bedrockruntime.NewFromConfig(awsCfg),
		Log:     &logger,
	})

	mux := http.NewServeMux()
	if _, err := server.New(server.Config{Agent: a, Secrets: cache, Mux: mux, Log: &logger}); err != nil {
		logger.Fatal().Err(err).Msg("creating server")
	}
	adapter := httpadapter.NewV2(mux)

	lambda.Start(func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		logger.Info().
			Str("path", req.RawPath).
			Str("method", req.RequestContext.HTTP.Method).
			Str("environment", secrets.Environment()).
			Msg("received event")

		resp, err := adapter.ProxyWithContext(ctx, req)
		if err != nil {
			logger.Error().Err(err).Msg("error processing request")
			body, _ := json.Marshal(api.ErrorResponse{
				Error:   err.Error(),
				Message: "An error occurred processing the request",
			})
			return events.APIGatewayV2HTTPResponse{
				StatusCode: http.StatusInternalServerError,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       string(body),
			}, nil
		}
		return resp, nil
	})
}
