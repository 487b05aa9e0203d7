package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classify" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["title"] != "Logo refresh" {
			t.Errorf("title = %q", req["title"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"category":   "branding",
			"flags":      []string{},
			"confidence": 0.93,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	result, err := c.ClassifyTask(context.Background(), "Logo refresh", "refresh our logo")
	if err != nil {
		t.Fatalf("ClassifyTask: %v", err)
	}
	if result.Category != "branding" || result.Flagged() {
		t.Errorf("result = %+v", result)
	}
}

func TestClassifyTaskFlagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"category": "other",
			"flags":    []string{"prohibited_content"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	result, err := c.ClassifyTask(context.Background(), "x", "y")
	if err != nil {
		t.Fatalf("ClassifyTask: %v", err)
	}
	if !result.Flagged() {
		t.Errorf("want flagged result")
	}
}

func TestClassifyTaskServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	if _, err := c.ClassifyTask(context.Background(), "x", "y"); err == nil {
		t.Fatal("want error on 503")
	}
}
