package usecase

import (
	"testing"
	"time"

	"voiceagent/internal/domain"
)

func TestTranscriptAggregatorCommitUserOnly(t *testing.T) {
	t.Parallel()

	a := newTranscriptAggregator()
	a.AddUser("I'd like to ")
	a.AddUser("sell my home")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := a.Commit(at)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Role != domain.RoleUser || entries[0].Text != "I'd like to sell my home" || !entries[0].Timestamp.Equal(at) {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestTranscriptAggregatorCommitBothUserFirst(t *testing.T) {
	t.Parallel()

	a := newTranscriptAggregator()
	a.AddAgent("Welcome.")
	a.AddUser("Hello")

	entries := a.Commit(time.Now())
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Role != domain.RoleUser || entries[1].Role != domain.RoleAgent {
		t.Fatalf("expected user before agent: %+v", entries)
	}

	user, agent := a.Pending()
	if user != "" || agent != "" {
		t.Fatalf("expected buffers cleared, got %q %q", user, agent)
	}
}

func TestTranscriptAggregatorCommitEmpty(t *testing.T) {
	t.Parallel()

	a := newTranscriptAggregator()
	a.AddUser("")
	a.AddAgent("")
	if entries := a.Commit(time.Now()); len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestTranscriptAggregatorCommitKeepsTextAsReceived(t *testing.T) {
	t.Parallel()

	a := newTranscriptAggregator()
	a.AddUser(" Hello")
	a.AddUser(" there ")
	entries := a.Commit(time.Now())
	if len(entries) != 1 || entries[0].Text != " Hello there " {
		t.Fatalf("expected text committed unchanged, got %+v", entries)
	}

	a.AddAgent(" ")
	entries = a.Commit(time.Now())
	if len(entries) != 1 || entries[0].Role != domain.RoleAgent || entries[0].Text != " " {
		t.Fatalf("expected whitespace-only agent entry, got %+v", entries)
	}
}

func TestTranscriptAggregatorDiscardAgent(t *testing.T) {
	t.Parallel()

	a := newTranscriptAggregator()
	a.AddUser("wait")
	a.AddAgent("Our premium pack")
	a.DiscardAgent()
	a.AddAgent("Of course.")

	entries := a.Commit(time.Now())
	if len(entries) != 2 || entries[1].Text != "Of course." {
		t.Fatalf("discarded fragment leaked into commit: %+v", entries)
	}
}
