// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package agent runs a conversational agent on top of the Bedrock
// Converse API.
package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"
)

// Defaults used when the corresponding config fields are unset.
const (
	DefaultModelID      = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"
	DefaultSystemPrompt = "You are a helpful assistant"
)

// ErrEmptyPrompt is reported when the caller provides no prompt.
var ErrEmptyPrompt = errors.New("empty prompt")

// Runtime is the subset of the Bedrock runtime API surface used by an
// Agent. It is satisfied by *bedrockruntime.Client.
type Runtime interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Config is the configuration for an Agent.
type Config struct {
	// Runtime is used to invoke the model. It must be non-nil.
	Runtime Runtime

	// ModelID is the Bedrock model or inference profile to invoke.
	// If empty, DefaultModelID is used.
	ModelID string

	// SystemPrompt is the system instruction for the model. If empty,
	// DefaultSystemPrompt is used.
	SystemPrompt string

	// Log is where model invocations are reported. If nil, logs are
	// discarded.
	Log *zerolog.Logger
}

func (c Config) modelID() string {
	if c.ModelID == "" {
		return DefaultModelID
	}
	return c.ModelID
}

func (c Config) systemPrompt() string {
	if c.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}

func (c Config) log() zerolog.Logger {
	if c.Log == nil {
		return zerolog.Nop()
	}
	return *c.Log
}

// An Agent answers single-turn prompts with a fixed system prompt.
// It holds no conversation state and is safe for concurrent use.
type Agent struct {
	runtime Runtime
	modelID string
	system  string
	log     zerolog.Logger
}

// New constructs an agent with the given configuration.
// The Runtime of the configuration must be set.
func New(cfg Config) *Agent {
	if cfg.Runtime == nil {
		panic("agent: no runtime is set")
	}
	return &Agent{
		runtime: cfg.Runtime,
		modelID: cfg.modelID(),
		system:  cfg.systemPrompt(),
		log:     cfg.log(),
	}
}

func (a *Agent) messages(prompt string) []types.Message {
	return []types.Message{{
		Role:    types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
	}}
}

func (a *Agent) systemBlocks() []types.SystemContentBlock {
	return []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: a.system}}
}

// Ask runs the agent over prompt and returns the complete response
// text.
func (a *Agent) Ask(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	a.log.Debug().Str("model", a.modelID).Msg("invoking model")

	out, err := a.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(a.modelID),
		System:   a.systemBlocks(),
		Messages: a.messages(prompt),
	})
	if err != nil {
		return "", err
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("model returned no message")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(t.Value)
		}
	}
	return sb.String(), nil
}

// Stream runs the agent over prompt and delivers response text to emit
// as it is produced. Only text deltas are forwarded; tool-use and
// reasoning events are dropped. An error from emit aborts the stream.
func (a *Agent) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	if prompt == "" {
		return ErrEmptyPrompt
	}
	a.log.Debug().Str("model", a.modelID).Msg("invoking model (streaming)")

	out, err := a.runtime.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(a.modelID),
		System:   a.systemBlocks(),
		Messages: a.messages(prompt),
	})
	if err != nil {
		return err
	}
	stream := out.GetStream()
	defer stream.Close()

	for event := range stream.Events() {
		delta, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		text, ok := delta.Value.Delta.(*types.ContentBlockDeltaMemberText)
		if !ok {
			continue
		}
		if err := emit(text.Value); err != nil {
			return err
		}
	}
	return stream.Err()
}
