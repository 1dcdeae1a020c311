package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smiglya/Project.vsm/internal/config"
)

func testClient(baseURL string, maxRetries int) *Client {
	return NewClient(&config.FeedConfig{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		TimeoutSeconds:    5,
		MaxRetries:        maxRetries,
		RetryDelaySeconds: 0,
	})
}

func TestFetchMileage(t *testing.T) {
	var gotAuth, gotTrain, gotDate, gotDepot string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrain = r.URL.Query().Get("train_id")
		gotDate = r.URL.Query().Get("date")
		gotDepot = r.URL.Query().Get("depot")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"train_id":"Ласточка-001","date":"2024-03-15","daily_mileage":480,"total_mileage":105480}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 0)
	data, err := client.FetchMileage(context.Background(), "Ласточка-001", "Металлострой",
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotTrain != "Ласточка-001" || gotDate != "2024-03-15" || gotDepot != "Металлострой" {
		t.Errorf("query params = %q/%q/%q", gotTrain, gotDate, gotDepot)
	}
	if data.DailyMileage != 480 {
		t.Errorf("DailyMileage = %d, want 480", data.DailyMileage)
	}
	if data.TotalMileage == nil || *data.TotalMileage != 105480 {
		t.Errorf("TotalMileage = %v, want 105480", data.TotalMileage)
	}
}

func TestFetchMileageAbsentTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily_mileage":300}`))
	}))
	defer server.Close()

	data, err := testClient(server.URL, 0).FetchMileage(context.Background(), "t", "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.TotalMileage != nil {
		t.Errorf("TotalMileage = %v, want nil", data.TotalMileage)
	}
}

func TestFetchMileageNotFound(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 3).FetchMileage(context.Background(), "t", "", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("404 was retried %d times, want a single attempt", calls)
	}
}

func TestFetchMileageRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"daily_mileage":100}`))
	}))
	defer server.Close()

	data, err := testClient(server.URL, 3).FetchMileage(context.Background(), "t", "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if data.DailyMileage != 100 {
		t.Errorf("DailyMileage = %d, want 100", data.DailyMileage)
	}
}

func TestFetchMileageExhaustsRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 2).FetchMileage(context.Background(), "t", "", time.Now())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
}

func TestFetchMileageContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(server.URL, 5).FetchMileage(ctx, "t", "", time.Now())
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
