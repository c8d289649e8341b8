package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/suhachi/mystorestory-orders/internal/awsx/awstest"
	"github.com/suhachi/mystorestory-orders/internal/config"
	"github.com/suhachi/mystorestory-orders/internal/notify"
	"github.com/suhachi/mystorestory-orders/internal/orders"
)

func historyBody(t *testing.T, status string) string {
	t.Helper()
	raw, err := json.Marshal(orders.HistoryEvent{
		HistoryID:   "h1",
		OrderID:     "o1",
		OrderNumber: "000123",
		StoreID:     "store-1",
		Status:      status,
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(raw)
}

func seedTokens(t *testing.T, db *awstest.DB, tokens ...notify.Token) {
	t.Helper()
	store := notify.NewTokenStore(db, "push_tokens")
	for _, tok := range tokens {
		if err := store.Put(context.Background(), tok); err != nil {
			t.Fatalf("seed token %s: %v", tok.Token, err)
		}
	}
}

func TestProcessor_FansOutToStoreTokensAndSlack(t *testing.T) {
	var pushes, slacks atomic.Int64
	pushSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
	}))
	defer pushSrv.Close()
	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slacks.Add(1)
	}))
	defer slackSrv.Close()

	db := awstest.NewDB()
	db.CreateTable("push_tokens", "token")
	db.CreateTable("notify_dlq", "failure_id")
	seedTokens(t, db,
		notify.Token{Token: "tok-a", StoreID: "store-1"},
		notify.Token{Token: "tok-b", StoreID: "store-1"},
		notify.Token{Token: "tok-other", StoreID: "store-2"},
	)

	cfg := config.Default()
	cfg.PushEndpoint = pushSrv.URL
	cfg.SlackWebhookURL = slackSrv.URL
	p := NewProcessor(db, cfg)

	ev := events.SQSEvent{Records: []events.SQSMessage{{Body: historyBody(t, orders.StatusReady)}}}
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := pushes.Load(); got != 2 {
		t.Fatalf("pushes = %d, want 2 (foreign-store token must be skipped)", got)
	}
	if got := slacks.Load(); got != 1 {
		t.Fatalf("slack posts = %d, want 1", got)
	}
	if db.Len("notify_dlq") != 0 {
		t.Fatalf("dlq = %d entries after clean delivery", db.Len("notify_dlq"))
	}
}

func TestProcessor_DeadLettersFailedDeliveries(t *testing.T) {
	pushSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer pushSrv.Close()
	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer slackSrv.Close()

	db := awstest.NewDB()
	db.CreateTable("push_tokens", "token")
	db.CreateTable("notify_dlq", "failure_id")
	seedTokens(t, db,
		notify.Token{Token: "tok-a", StoreID: "store-1"},
		notify.Token{Token: "tok-b", StoreID: "store-1"},
	)

	cfg := config.Default()
	cfg.PushEndpoint = pushSrv.URL
	cfg.SlackWebhookURL = slackSrv.URL
	p := NewProcessor(db, cfg)

	ev := events.SQSEvent{Records: []events.SQSMessage{{Body: historyBody(t, orders.StatusConfirmed)}}}
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// Both push attempts dead-letter; the slack post succeeded.
	if db.Len("notify_dlq") != 2 {
		t.Fatalf("dlq = %d entries, want 2", db.Len("notify_dlq"))
	}
}

func TestProcessor_BadMessageDoesNotFailBatch(t *testing.T) {
	db := awstest.NewDB()
	db.CreateTable("push_tokens", "token")
	db.CreateTable("notify_dlq", "failure_id")

	cfg := config.Default()
	p := NewProcessor(db, cfg)

	ev := events.SQSEvent{Records: []events.SQSMessage{{Body: "not json"}}}
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle should swallow bad messages, got %v", err)
	}
}

func TestStatusMessage(t *testing.T) {
	ev := orders.HistoryEvent{OrderNumber: "000123", Status: orders.StatusCancelled, Note: "out of stock"}
	title, body := statusMessage(ev)
	if title != "Order cancelled" {
		t.Fatalf("title = %q", title)
	}
	if want := "Order #000123 has been cancelled. Reason: out of stock"; body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}

	_, body = statusMessage(orders.HistoryEvent{OrderNumber: "000123", Status: "SOMETHING_NEW"})
	if body != "Order #000123 is now SOMETHING_NEW." {
		t.Fatalf("fallback body = %q", body)
	}
}
