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

package mock

import (
	"context"
	"sync"
)

// MockChatModel is a test double for ai.ChatModel.
type MockChatModel struct {
	// ChatCompletionFunc is called by ChatCompletion if set.
	// If nil, Response is returned.
	ChatCompletionFunc func(ctx context.Context, prompt string) (string, error)

	// Response is the fixed answer used when ChatCompletionFunc is nil.
	Response string

	mu      sync.Mutex
	prompts []string
}

// NewMockChatModel creates a mock chat model that always answers response.
func NewMockChatModel(response string) *MockChatModel {
	return &MockChatModel{Response: response}
}

// ChatCompletion records prompt and returns the configured answer.
func (m *MockChatModel) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.ChatCompletionFunc
	response := m.Response
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return response, nil
}

// CallCount returns the number of times ChatCompletion was called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns every prompt received, in call order.
func (m *MockChatModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Reset clears recorded prompts and injected behavior.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.ChatCompletionFunc = nil
}
