package demo

import (
	"context"
	"errors"
	"testing"

	"streamwatch/services/plexserver"
	"streamwatch/services/sessions"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"demo", true},
		{"DEMO", true},
		{"  Demo  ", true},
		{"demon", false},
		{"", false},
		{"admin", false},
	}
	for _, tt := range tests {
		if got := Matches(tt.id); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestProviderSatisfiesFetchContracts(t *testing.T) {
	var _ sessions.Fetcher = NewProvider()
	var _ sessions.MetadataFetcher = NewProvider()
}

func TestFetchSessionsFixture(t *testing.T) {
	snapshot, err := NewProvider().FetchSessions(context.Background())
	if err != nil {
		t.Fatalf("FetchSessions: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 fixture sessions, got %d", len(snapshot))
	}

	// The owned session is deliberately not first in document order.
	cred := Credential()
	if sessions.Owned(snapshot[0], cred) {
		t.Error("first fixture session should be foreign")
	}
	reordered := sessions.Reorder(snapshot, cred)
	if !sessions.Owned(reordered[0], cred) {
		t.Error("reorder should surface the owned session first")
	}
	if reordered[0].RatingKey != "demo-101" {
		t.Errorf("owned session = %q, want demo-101", reordered[0].RatingKey)
	}
}

func TestFetchMetadataFixture(t *testing.T) {
	p := NewProvider()

	m, err := p.FetchMetadata(context.Background(), "demo-101")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if m.Title != "Night of the Living Dead" || len(m.Roles) == 0 || m.Palette == nil {
		t.Errorf("fixture record incomplete: %+v", m)
	}

	// Callers get a copy, not the fixture itself.
	m.Title = "mutated"
	again, err := p.FetchMetadata(context.Background(), "demo-101")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if again.Title != "Night of the Living Dead" {
		t.Error("fixture was mutated through a returned record")
	}

	_, err = p.FetchMetadata(context.Background(), "demo-999")
	if !errors.Is(err, plexserver.ErrNotFound) {
		t.Fatalf("unknown key should wrap ErrNotFound, got %v", err)
	}
}

func TestCredentialOwnsFixtureSession(t *testing.T) {
	cred := Credential()
	if !cred.HasToken() {
		t.Error("demo credential must carry a token")
	}
	if cred.AccountID != 101 {
		t.Errorf("account id = %d", cred.AccountID)
	}
}
