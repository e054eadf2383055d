// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/embedkit/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newChatModel is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &ChatModel{
		client:      client,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatModel creates a chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// ChatCompletion sends prompt as a single human message.
func (m *ChatModel) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	response, err := m.client.GenerateContent(ctx, content, llms.WithTemperature(m.temperature))
	if err != nil {
		m.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		m.logger.Debug("no choices returned from model")
		return "", nil
	}

	return response.Choices[0].Content, nil
}
