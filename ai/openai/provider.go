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
	"log/slog"

	"github.com/poiesic/embedkit/ai"
)

// Provider aggregates an Embedder and a ChatModel sharing one Config.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	chat     *ChatModel
	logger   *slog.Logger
}

// NewProvider validates config and builds both services.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	chat, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:   config,
		embedder: embedder,
		chat:     chat,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
