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

// Package memory provides bounded, expiring conversation history.
//
// Each conversation keeps its most recent turns so follow-up questions
// ("what about the second one?") can be answered in context. History is
// capped per conversation and conversations expire after a period of
// inactivity; expiry is enforced lazily on access and by an optional
// background sweep.
package memory

import (
	"context"
	"sync"
	"time"
)

// Turn is a single utterance in a conversation.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the utterance text.
	Content string `json:"content"`

	// Timestamp records when the turn was stored.
	Timestamp time.Time `json:"timestamp"`
}

// Config configures conversation memory.
type Config struct {
	// MaxTurns caps the history kept per conversation; older turns are
	// dropped first. Default: 20.
	MaxTurns int `yaml:"max_turns,omitempty"`

	// TTL is how long an idle conversation is kept. Default: 30m.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// SweepInterval is how often expired conversations are purged in
	// the background. Zero disables the sweep; lazy expiry on access
	// still applies. Default: 5m.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 20
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

// conversation is the stored state for one conversation ID.
type conversation struct {
	turns      []Turn
	lastAccess time.Time
}

// Store holds conversation histories in memory.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	config        Config

	// now is swappable for tests.
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewStore creates a conversation store. If a sweep interval is
// configured, a background goroutine purges expired conversations until
// Close is called.
func NewStore(cfg Config) *Store {
	cfg.SetDefaults()
	s := &Store{
		conversations: make(map[string]*conversation),
		config:        cfg,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go s.sweepLoop()
	}
	return s
}

// Append records a turn at the end of the conversation's history,
// evicting the oldest turn when the cap is reached.
func (s *Store) Append(_ context.Context, conversationID string, turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if ok && s.expired(conv) {
		conv = nil
		ok = false
	}
	if !ok {
		conv = &conversation{}
		s.conversations[conversationID] = conv
	}

	conv.turns = append(conv.turns, turn)
	if len(conv.turns) > s.config.MaxTurns {
		conv.turns = conv.turns[len(conv.turns)-s.config.MaxTurns:]
	}
	conv.lastAccess = s.now()
}

// History returns the conversation's turns, oldest first. An unknown or
// expired conversation yields an empty history; reading refreshes the
// conversation's TTL.
func (s *Store) History(_ context.Context, conversationID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	if s.expired(conv) {
		delete(s.conversations, conversationID)
		return nil
	}

	conv.lastAccess = s.now()
	out := make([]Turn, len(conv.turns))
	copy(out, conv.turns)
	return out
}

// Clear removes a conversation's history.
func (s *Store) Clear(_ context.Context, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Close stops the background sweep.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// expired reports whether the conversation's TTL has lapsed. Caller
// holds the lock.
func (s *Store) expired(conv *conversation) bool {
	return s.now().Sub(conv.lastAccess) > s.config.TTL
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep purges every expired conversation.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conv := range s.conversations {
		if s.expired(conv) {
			delete(s.conversations, id)
		}
	}
}
