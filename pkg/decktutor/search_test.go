package decktutor

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestFindCardNames(t *testing.T) {
	server, seen := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `["Black Lotus","Lotus Petal"]`
	})
	defer server.Close()

	client := newTestClient(server.URL)
	names, err := client.FindCardNames(context.Background(), "lotus")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "Black Lotus" {
		t.Errorf("Unexpected names %v", names)
	}

	r := seen()[0]
	if r.Method != http.MethodGet || r.Path != "/search/card/name" {
		t.Errorf("Expected GET /search/card/name, got %s %s", r.Method, r.Path)
	}
	if r.Query["game"] != "mtg" || r.Query["query"] != "lotus" {
		t.Errorf("Unexpected query %v", r.Query)
	}
}

func TestFindCardNames_Cache(t *testing.T) {
	server, seen := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `["Black Lotus"]`
	})
	defer server.Close()

	client := NewClient(&ClientConfig{Endpoint: server.URL, NameCacheSize: 8})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.FindCardNames(ctx, "lotus"); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if len(seen()) != 1 {
		t.Errorf("Expected 1 request with cache, got %d", len(seen()))
	}

	// the game is part of the cache key
	client.SetGame(GameYuGiOh)
	if _, err := client.FindCardNames(ctx, "lotus"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requests := seen()
	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}
	if requests[1].Query["game"] != "ygo" {
		t.Errorf("Expected game ygo, got %s", requests[1].Query["game"])
	}
}

func TestFindCardNames_CacheIsolatedFromCallers(t *testing.T) {
	server, _ := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `["Lotus Petal","Black Lotus"]`
	})
	defer server.Close()

	client := NewClient(&ClientConfig{Endpoint: server.URL, NameCacheSize: 8})
	ctx := context.Background()

	first, err := client.FindCardNames(ctx, "lotus")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	first[0] = "Mox Pearl"

	second, _ := client.FindCardNames(ctx, "lotus")
	if second[0] != "Lotus Petal" {
		t.Fatalf("Cached names changed through the first result: %v", second)
	}
	second[1] = "Mox Ruby"

	third, _ := client.FindCardNames(ctx, "lotus")
	if third[1] != "Black Lotus" {
		t.Errorf("Cached names changed through a cache hit: %v", third)
	}
}

func TestFindCardVersions(t *testing.T) {
	server, seen := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `[{"id":"v-1","game":"mtg","name":"Black Lotus","set":"LEA","set_name":"Limited Edition Alpha"}]`
	})
	defer server.Close()

	client := newTestClient(server.URL)
	versions, err := client.FindCardVersions(context.Background(), "Black Lotus", "LEA", 10, 5, Order{Column: "set", Descending: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(versions) != 1 || versions[0].SetName != "Limited Edition Alpha" {
		t.Errorf("Unexpected versions %+v", versions)
	}

	r := seen()[0]
	expected := map[string]string{
		"game":   "mtg",
		"name":   "Black Lotus",
		"set":    "LEA",
		"offset": "10",
		"limit":  "5",
		"order":  "set,desc",
	}
	for k, v := range expected {
		if r.Query[k] != v {
			t.Errorf("Expected %s=%s, got %q", k, v, r.Query[k])
		}
	}
}

func TestFindCardVersions_SkipsEmptyParams(t *testing.T) {
	server, seen := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `[]`
	})
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.FindCardVersions(context.Background(), "", "LEA", 0, 0, Order{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	r := seen()[0]
	for _, k := range []string{"name", "limit", "order"} {
		if _, ok := r.Query[k]; ok {
			t.Errorf("Expected %s to be skipped", k)
		}
	}
	if r.Query["offset"] != "0" {
		t.Errorf("Expected offset 0 to be sent, got %q", r.Query["offset"])
	}
	if r.Query["set"] != "LEA" {
		t.Errorf("Expected set LEA, got %q", r.Query["set"])
	}
}

func TestSerp(t *testing.T) {
	server, seen := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `[{"id":"l-1","card":{"id":"v-1","name":"Black Lotus"},"seller":"bob","state":"NM","language":"en","price":1500000,"currency":"EUR","quantity":1}]`
	})
	defer server.Close()

	client := newTestClient(server.URL)
	foil := false
	listings, err := client.Serp(context.Background(), &Search{
		Game:     GameMagic,
		Name:     "Black Lotus",
		State:    StateNearMint,
		Foil:     &foil,
		MaxPrice: 2000000,
	}, 0, 25, Order{Column: "price"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(listings) != 1 || listings[0].State != StateNearMint || listings[0].Price != 1500000 {
		t.Errorf("Unexpected listings %+v", listings)
	}

	r := seen()[0]
	if r.Method != http.MethodPost || r.Path != "/search/serp" {
		t.Errorf("Expected POST /search/serp, got %s %s", r.Method, r.Path)
	}

	var body map[string]any
	if err := json.Unmarshal(r.Body, &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["offset"] != float64(0) {
		t.Errorf("Expected offset 0 in body, got %v", body["offset"])
	}
	if body["limit"] != float64(25) {
		t.Errorf("Expected limit 25, got %v", body["limit"])
	}
	if body["order"] != "price,asc" {
		t.Errorf("Expected order price,asc, got %v", body["order"])
	}
	search, ok := body["search"].(map[string]any)
	if !ok {
		t.Fatalf("Expected search object, got %T", body["search"])
	}
	if search["foil"] != false {
		t.Errorf("Expected explicit foil=false, got %v", search["foil"])
	}
	if _, ok := search["set"]; ok {
		t.Error("Empty set should be omitted")
	}
}

func TestSerp_OmitsEmptyLimitAndOrder(t *testing.T) {
	server, seen := mockServer(t, func(r *recorded) (int, string) {
		return http.StatusOK, `[]`
	})
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Serp(context.Background(), nil, 0, 0, Order{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var body map[string]any
	json.Unmarshal(seen()[0].Body, &body)
	if _, ok := body["limit"]; ok {
		t.Error("limit should be omitted")
	}
	if _, ok := body["order"]; ok {
		t.Error("order should be omitted")
	}
	if _, ok := body["offset"]; !ok {
		t.Error("offset should always be sent")
	}
}
