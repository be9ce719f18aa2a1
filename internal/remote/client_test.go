package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitAnalysisSendsBearerToken(t *testing.T) {
	var gotAuth string
	var gotReq AnalysisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/analyses" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"riskScore":42}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", time.Second)
	result, err := c.SubmitAnalysis(context.Background(), AnalysisRequest{
		DocumentID: "doc-1",
		FileName:   "terms.pdf",
		Content:    "clause text",
		Priority:   "high",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(result) != `{"riskScore":42}` {
		t.Fatalf("result = %s", result)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotReq.DocumentID != "doc-1" || gotReq.Priority != "high" {
		t.Fatalf("request body = %+v", gotReq)
	}
}

func TestApplyRoutesByKindAndAction(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	if err := c.Apply(ctx, "analysis", "create", json.RawMessage(`{"documentId":"doc-1"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Apply(ctx, "preference", "update", json.RawMessage(`{"id":"pref-7","theme":"dark"}`)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Apply(ctx, "notification", "delete", json.RawMessage(`{"id":"n-3"}`)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []call{
		{http.MethodPost, "/api/v1/analyses"},
		{http.MethodPut, "/api/v1/preferences/pref-7"},
		{http.MethodDelete, "/api/v1/notifications/n-3"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestApplyRejectsUpdateWithoutID(t *testing.T) {
	c := NewClient("http://localhost:1", "", time.Second)
	err := c.Apply(context.Background(), "preference", "update", json.RawMessage(`{"theme":"dark"}`))
	if err == nil {
		t.Fatal("expected error for update without id")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError", err)
	}
	if Temporary(err) {
		t.Fatal("missing-id error should be permanent")
	}
}

func TestStatusErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid document"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.SubmitAnalysis(context.Background(), AnalysisRequest{DocumentID: "doc-1"})
	if err == nil {
		t.Fatal("expected error for 422 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("error = %v", err)
	}
	if Temporary(err) {
		t.Fatal("422 should be permanent")
	}

	if !Temporary(&StatusError{StatusCode: http.StatusBadGateway}) {
		t.Fatal("502 should be temporary")
	}
	if !Temporary(&StatusError{StatusCode: http.StatusTooManyRequests}) {
		t.Fatal("429 should be temporary")
	}
	if !Temporary(errors.New("dial tcp: connection refused")) {
		t.Fatal("network error should be temporary")
	}
}

func TestPingMeasuresLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("ping path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	latency, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if latency <= 0 {
		t.Fatalf("latency = %v", latency)
	}
}
