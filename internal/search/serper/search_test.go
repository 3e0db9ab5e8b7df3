package serper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kallisto-osint/osinter/internal/search/models"
)

func TestSearchParsesOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("missing api key header")
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["q"] != "jane doe austin" {
			t.Errorf("unexpected query %v", payload["q"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "A", "link": "https://a.example", "snippet": "sa"},
				{"title": "B", "link": "https://b.example", "snippet": "sb"},
				{"title": "C", "link": "https://c.example", "snippet": "sc"},
			},
		})
	}))
	defer srv.Close()

	s := Search{ApiKey: "k", Endpoint: srv.URL}
	got, err := s.Search(context.Background(), "jane doe austin", 2, models.Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(got))
	}
	if got[0].Rank != 0 || got[1].Rank != 1 {
		t.Fatalf("expected ranks to follow result order")
	}
	if got[0].URL != "https://a.example" {
		t.Fatalf("unexpected first result %+v", got[0])
	}
}

func TestSearchUnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := Search{ApiKey: "k", Endpoint: srv.URL}
	_, err := s.Search(context.Background(), "q", 3, models.Filters{})
	if !errors.Is(err, models.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
