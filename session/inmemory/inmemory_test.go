package inmemory

import (
	"testing"
	"time"

	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/workflow"
)

func TestEnsureSessionReusesExisting(t *testing.T) {
	store := NewStore()
	first, err := store.EnsureSession("", time.Minute)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	second, err := store.EnsureSession(first.ID(), time.Minute)
	if err != nil {
		t.Fatalf("EnsureSession by id: %v", err)
	}
	if first.ID() != second.ID() {
		t.Fatalf("expected same session, got %s and %s", first.ID(), second.ID())
	}

	missing, err := store.GetSession("no-such-id")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %v err=%v", missing, err)
	}
}

func TestSessionStateRoundTrip(t *testing.T) {
	sess, err := NewSession("s1", time.Minute)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	st := workflow.NewStateFrom(map[string]interface{}{"briefing_draft": "text"})
	if err := sess.SaveState(st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	loaded, err := sess.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if v, _ := loaded.Get("briefing_draft"); v != "text" {
		t.Fatalf("state did not round-trip: %v", v)
	}
}

func TestSessionSearch(t *testing.T) {
	sess, err := NewSession("s2", time.Minute)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	items := []briefing.NewsItem{
		{Region: "global", Title: "Measles outbreak in region X", Summary: "Cases of measles rising", URL: "https://example.com/1"},
		{Region: "city", Title: "New bike lanes open", Summary: "Active transport expansion", URL: "https://example.com/2"},
	}
	if err := sess.IndexItems(items); err != nil {
		t.Fatalf("IndexItems: %v", err)
	}
	hits, err := sess.Search("measles", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Measles outbreak in region X" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits[0].Rank != 1 {
		t.Fatalf("expected rank 1, got %d", hits[0].Rank)
	}

	// re-indexing is idempotent, including casing differences
	recased := []briefing.NewsItem{
		{Region: "Global", Title: "MEASLES OUTBREAK IN REGION X", Summary: "Cases of measles rising", URL: "https://example.com/1"},
		items[1],
	}
	if err := sess.IndexItems(recased); err != nil {
		t.Fatalf("re-IndexItems: %v", err)
	}
	if got := len(sess.Items()); got != 2 {
		t.Fatalf("expected 2 indexed items, got %d", got)
	}
}
