package usecase

import (
	"strings"
	"sync"
	"time"

	"voiceagent/internal/domain"
)

// transcriptAggregator buffers the fragments of the current turn. The user and agent
// buffers commit together and clear together.
type transcriptAggregator struct {
	mu    sync.Mutex
	user  strings.Builder
	agent strings.Builder
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) AddUser(fragment string) {
	if fragment == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user.WriteString(fragment)
}

func (a *transcriptAggregator) AddAgent(fragment string) {
	if fragment == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agent.WriteString(fragment)
}

// Commit returns the finished turn, user entry first, and clears both buffers. Text is
// committed as received; only an empty buffer produces no entry.
func (a *transcriptAggregator) Commit(at time.Time) []domain.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	user := a.user.String()
	agent := a.agent.String()
	a.user.Reset()
	a.agent.Reset()

	var entries []domain.LogEntry
	if user != "" {
		entries = append(entries, domain.LogEntry{Role: domain.RoleUser, Text: user, Timestamp: at})
	}
	if agent != "" {
		entries = append(entries, domain.LogEntry{Role: domain.RoleAgent, Text: agent, Timestamp: at})
	}
	return entries
}

// DiscardAgent drops the unfinished agent utterance after an interruption.
func (a *transcriptAggregator) DiscardAgent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agent.Reset()
}

func (a *transcriptAggregator) Pending() (user string, agent string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.String(), a.agent.String()
}
