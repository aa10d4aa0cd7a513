package lrclib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"lyrik/pkg/source"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: time.Second},
		baseURL:        baseURL,
		requestTimeout: 2 * time.Second,
		maxRetries:     1,
	}
}

const body = `[
 {"id":1,"trackName":"Song","artistName":"A","albumName":"X","syncedLyrics":""},
 {"id":2,"trackName":"Song","artistName":"B","albumName":"Elsewhere","syncedLyrics":"[00:01.00]two"},
 {"id":3,"trackName":"Song","artistName":"A, B","albumName":"Other","syncedLyrics":"[00:01.00]three"},
 {"id":4,"trackName":"Song","artistName":"A, B","albumName":"Album","syncedLyrics":"[00:01.00]four","instrumental":true}
]`

func serve(t *testing.T, status int, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(payload))
	}))
}

func TestFetch(t *testing.T) {
	q := source.Query{Title: "Song", Album: "Album", Artists: []string{"B", "A"}}

	tests := []struct {
		name       string
		status     int
		payload    string
		allowFuzzy bool
		wantLyrics string
		wantConf   source.Confidence
		wantErr    error
	}{
		{"FuzzyBestScore", http.StatusOK, body, true, "[00:01.00]three", source.Fuzzy, nil},
		{"NoExactWithoutFuzzy", http.StatusOK, body, false, "", 0, source.ErrNotFound},
		{"Exact", http.StatusOK, `[{"id":5,"trackName":"song","artistName":"A & B","albumName":"album","syncedLyrics":"[00:02.00]five"}]`, false, "[00:02.00]five", source.Exact, nil},
		{"Empty", http.StatusOK, `[]`, true, "", 0, source.ErrNotFound},
		{"ServerError", http.StatusInternalServerError, ``, true, "", 0, source.ErrConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.status, tt.payload)
			defer server.Close()

			res, err := newTestClient(server.URL).Fetch(context.Background(), q, tt.allowFuzzy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected success, got error: %v", err)
			}
			if res.Lyrics != tt.wantLyrics {
				t.Errorf("Expected lyrics %q, got %q", tt.wantLyrics, res.Lyrics)
			}
			if res.Confidence != tt.wantConf {
				t.Errorf("Expected confidence %v, got %v", tt.wantConf, res.Confidence)
			}
		})
	}
}

func TestSplitArtists(t *testing.T) {
	got := splitArtists("Emi Evans, 岡部啓一 & Someone")
	want := []string{"Emi Evans", "岡部啓一", "Someone"}
	if !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
