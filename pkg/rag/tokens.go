// Copyright 2025 Medvoice AI
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

package rag

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/medvoice-ai/medvoice/pkg/llm"
)

// TokenCounter counts tokens with the tokenizer matching a chat model.
// The context budget itself is in characters; token counting is only
// used to trim conversation history before generation.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	// Encodings are expensive to initialize; cache them per model.
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.RWMutex
)

// NewTokenCounter creates a counter for the given model, falling back
// to the cl100k_base encoding for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingCacheMu.RLock()
	cached, ok := encodingCache[model]
	encodingCacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCacheMu.Lock()
	encodingCache[model] = encoding
	encodingCacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count of text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// OpenAI chat format overhead: <|start|>role|content<|end|> costs 3
// tokens per message, and the assistant reply primes with 3 more.
const (
	tokensPerMessage   = 3
	replyPrimingTokens = 3
)

// messageCost is the token cost of one message including its framing,
// excluding the reply priming.
func (tc *TokenCounter) messageCost(msg llm.Message) int {
	return tokensPerMessage +
		len(tc.encoding.Encode(msg.Role, nil, nil)) +
		len(tc.encoding.Encode(msg.Content, nil, nil))
}

// CountMessages counts tokens in a message list including the per-message
// role overhead of OpenAI's chat format and the reply priming.
func (tc *TokenCounter) CountMessages(messages []llm.Message) int {
	total := replyPrimingTokens
	for _, msg := range messages {
		total += tc.messageCost(msg)
	}
	return total
}

// FitWithinLimit returns the suffix of messages that fits within
// maxTokens, selected from most recent backwards. Order is preserved.
// The reply priming is counted once, so CountMessages over the result
// never exceeds maxTokens.
func (tc *TokenCounter) FitWithinLimit(messages []llm.Message, maxTokens int) []llm.Message {
	if len(messages) == 0 {
		return messages
	}

	used := replyPrimingTokens
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := tc.messageCost(messages[i])
		if used+cost > maxTokens {
			break
		}
		used += cost
		start = i
	}
	return messages[start:]
}

// Model returns the model name this counter is configured for.
func (tc *TokenCounter) Model() string {
	return tc.model
}
