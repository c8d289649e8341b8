package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/suhachi/mystorestory-orders/internal/awsx/awstest"
	"github.com/suhachi/mystorestory-orders/internal/notify"
)

func newDLQ(t *testing.T) (*awstest.DB, *notify.DLQStore) {
	t.Helper()
	db := awstest.NewDB()
	db.CreateTable("notify_dlq", "failure_id")
	return db, notify.NewDLQStore(db, "notify_dlq")
}

func TestRetry_MixedBatch(t *testing.T) {
	db, dlq := newDLQ(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	if err := dlq.Put(ctx, notify.Failure{
		FailureID:  "f1",
		Channel:    notify.ChannelSlack,
		WebhookURL: srv.URL,
		Text:       "order ready",
	}); err != nil {
		t.Fatalf("seed DLQ: %v", err)
	}

	d := notify.NewDispatcher(dlq, srv.URL, "")
	res := d.Retry(ctx, []string{"f1", "f2"})

	if res.Success != 1 || res.Failed != 0 {
		t.Fatalf("result success=%d failed=%d, want 1/0", res.Success, res.Failed)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "Failure f2 not found" {
		t.Fatalf("errors = %v, want [Failure f2 not found]", res.Errors)
	}
	if !res.OK() {
		t.Fatal("batch with one success should be OK")
	}
	if db.Len("notify_dlq") != 0 {
		t.Fatal("successful retry must delete the DLQ entry")
	}
}

func TestRetry_FailureLeavesEntry(t *testing.T) {
	db, dlq := newDLQ(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	if err := dlq.Put(ctx, notify.Failure{
		FailureID:  "f1",
		Channel:    notify.ChannelSlack,
		WebhookURL: srv.URL,
		Text:       "order ready",
	}); err != nil {
		t.Fatalf("seed DLQ: %v", err)
	}

	d := notify.NewDispatcher(dlq, srv.URL, "")
	res := d.Retry(ctx, []string{"f1"})

	if res.Success != 0 || res.Failed != 1 {
		t.Fatalf("result success=%d failed=%d, want 0/1", res.Success, res.Failed)
	}
	if res.OK() {
		t.Fatal("batch with only failures is not OK")
	}
	if db.Len("notify_dlq") != 1 {
		t.Fatal("failed retry must leave the DLQ entry in place")
	}
}

func TestRetry_EmptyAndAllMissingIsOK(t *testing.T) {
	_, dlq := newDLQ(t)
	d := notify.NewDispatcher(dlq, "http://push.invalid", "")

	res := d.Retry(context.Background(), []string{"ghost"})
	if res.Success != 0 || res.Failed != 0 {
		t.Fatalf("result success=%d failed=%d, want 0/0", res.Success, res.Failed)
	}
	if !res.OK() {
		t.Fatal("batch with nothing attempted should be OK")
	}
}

func TestDeliverOrDeadLetter(t *testing.T) {
	db, dlq := newDLQ(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := notify.NewDispatcher(dlq, srv.URL, "server-key")
	err := d.DeliverOrDeadLetter(context.Background(), notify.Failure{
		FailureID: "f1",
		Channel:   notify.ChannelFCM,
		Token:     "tok-1",
		Title:     "Order ready",
		Body:      "Order #42 is ready for pickup.",
	})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if db.Len("notify_dlq") != 1 {
		t.Fatal("failed delivery must be dead-lettered")
	}
	f, gerr := dlq.Get(context.Background(), "f1")
	if gerr != nil || f == nil {
		t.Fatalf("DLQ entry missing: %v", gerr)
	}
	if f.LastError == "" || !strings.Contains(f.LastError, "503") {
		t.Fatalf("last error %q should record the status", f.LastError)
	}
}

func TestTokenCleanup(t *testing.T) {
	db := awstest.NewDB()
	db.CreateTable("push_tokens", "token")
	s := notify.NewTokenStore(db, "push_tokens")
	ctx := context.Background()

	now := time.Now()
	stale := now.Add(-120 * 24 * time.Hour).UnixMilli()
	fresh := now.Add(-10 * 24 * time.Hour).UnixMilli()

	if err := s.Put(ctx, notify.Token{Token: "old", StoreID: "s1", LastUsedAt: stale}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, notify.Token{Token: "new", StoreID: "s1", LastUsedAt: fresh}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	deleted, err := s.DeleteInactive(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteInactive: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if db.Len("push_tokens") != 1 {
		t.Fatalf("remaining tokens = %d, want 1", db.Len("push_tokens"))
	}

	tokens, err := s.ListByStore(ctx, "s1")
	if err != nil {
		t.Fatalf("ListByStore: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token != "new" {
		t.Fatalf("remaining tokens %+v, want only the fresh one", tokens)
	}
}
