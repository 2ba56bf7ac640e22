package moviedb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSearchPerson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/person" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key123" {
			t.Error("api key not sent")
		}
		if r.URL.Query().Get("query") != "Duane Jones" {
			t.Errorf("query = %q", r.URL.Query().Get("query"))
		}
		w.Write([]byte(`{"results":[
			{"id":937,"name":"Duane Jones","profile_path":"/dj.jpg",
			 "known_for":[{"title":"Night of the Living Dead"}]}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key123", "en", srv.URL)
	c.minInterval = 0

	p, err := c.SearchPerson(context.Background(), "Duane Jones")
	if err != nil {
		t.Fatalf("SearchPerson: %v", err)
	}
	if p.ID != 937 || p.Name != "Duane Jones" {
		t.Errorf("person wrong: %+v", p)
	}
	if p.KnownFor != "Night of the Living Dead" {
		t.Errorf("knownFor = %q", p.KnownFor)
	}
	if p.ProfileURL != "https://image.tmdb.org/t/p/w185/dj.jpg" {
		t.Errorf("profile url = %q", p.ProfileURL)
	}
}

func TestSearchPersonNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key123", "en", srv.URL)
	c.minInterval = 0
	if _, err := c.SearchPerson(context.Background(), "Nobody At All"); err == nil {
		t.Fatal("expected error for empty result set")
	}
}

func TestPersonCredits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/person/937/combined_credits" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"cast":[
			{"id":1,"title":"Night of the Living Dead","character":"Ben","media_type":"movie","release_date":"1968-10-01"},
			{"id":2,"name":"Some Series","character":"Guest","media_type":"tv","first_air_date":"1975-03-01"}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key123", "en", srv.URL)
	c.minInterval = 0

	credits, err := c.PersonCredits(context.Background(), 937)
	if err != nil {
		t.Fatalf("PersonCredits: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("expected 2 credits, got %d", len(credits))
	}
	if credits[0].Title != "Night of the Living Dead" || credits[0].Year != 1968 || credits[0].Character != "Ben" {
		t.Errorf("movie credit wrong: %+v", credits[0])
	}
	// TV entries use name/first_air_date instead of title/release_date.
	if credits[1].Title != "Some Series" || credits[1].Year != 1975 {
		t.Errorf("tv credit wrong: %+v", credits[1])
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "en")
	if c.IsConfigured() {
		t.Error("keyless client reports configured")
	}
	if _, err := c.SearchPerson(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.PersonCredits(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDoGETRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[{"id":1,"name":"Found"}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key123", "en", srv.URL)
	c.minInterval = 0

	p, err := c.SearchPerson(context.Background(), "Found")
	if err != nil {
		t.Fatalf("SearchPerson after retries: %v", err)
	}
	if p.Name != "Found" {
		t.Errorf("person = %+v", p)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDoGETDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key123", "en", srv.URL)
	c.minInterval = 0

	if _, err := c.SearchPerson(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls.Load())
	}
}
