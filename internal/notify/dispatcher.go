package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
)

const (
	sendTimeout    = 5 * time.Second
	retryBatchSize = 4
)

// Dispatcher delivers notifications to push tokens and webhooks, and
// replays dead-lettered failures on operator request.
type Dispatcher struct {
	dlq           *DLQStore
	pushEndpoint  string
	pushServerKey string
	httpClient    *http.Client
}

func NewDispatcher(dlq *DLQStore, pushEndpoint, pushServerKey string) *Dispatcher {
	return &Dispatcher{
		dlq:           dlq,
		pushEndpoint:  pushEndpoint,
		pushServerKey: pushServerKey,
		httpClient:    &http.Client{Timeout: sendTimeout},
	}
}

// SendPush delivers one push notification.
func (d *Dispatcher) SendPush(ctx context.Context, token, title, body string) error {
	payload := map[string]any{
		"to": token,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
	}
	headers := map[string]string{}
	if d.pushServerKey != "" {
		headers["Authorization"] = "key=" + d.pushServerKey
	}
	return d.post(ctx, d.pushEndpoint, payload, headers)
}

// SendWebhook posts a text message to a webhook URL (Slack-compatible).
func (d *Dispatcher) SendWebhook(ctx context.Context, url, text string) error {
	return d.post(ctx, url, map[string]string{"text": text}, nil)
}

// Send replays one recorded failure on its original channel.
func (d *Dispatcher) Send(ctx context.Context, f Failure) error {
	switch f.Channel {
	case ChannelFCM:
		return d.SendPush(ctx, f.Token, f.Title, f.Body)
	case ChannelSlack:
		return d.SendWebhook(ctx, f.WebhookURL, f.Text)
	default:
		return apperr.New(apperr.InvalidArgument, "unknown notification channel %q", f.Channel)
	}
}

// DeliverOrDeadLetter attempts delivery; on failure the notification is
// written to the DLQ instead of being retried inline, so a struggling
// downstream accumulates entries rather than amplified load.
func (d *Dispatcher) DeliverOrDeadLetter(ctx context.Context, f Failure) error {
	err := d.Send(ctx, f)
	if err == nil {
		return nil
	}
	f.LastError = err.Error()
	f.CreatedAt = time.Now().UnixMilli()
	if derr := d.dlq.Put(ctx, f); derr != nil {
		return fmt.Errorf("dead-letter after send failure (%v): %w", err, derr)
	}
	return err
}

// Retry replays the failures identified by failureIDs, best-effort. A
// missing record is reported in Errors but counts as neither success nor
// failure; a successful replay deletes the DLQ entry; a failed one leaves
// it in place.
func (d *Dispatcher) Retry(ctx context.Context, failureIDs []string) *RetryResult {
	type outcome struct {
		ok        bool
		attempted bool
		errMsg    string
	}
	outcomes := make([]outcome, len(failureIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(retryBatchSize)
	for i, id := range failureIDs {
		g.Go(func() error {
			f, err := d.dlq.Get(gctx, id)
			if err != nil {
				outcomes[i] = outcome{attempted: true, errMsg: fmt.Sprintf("Failure %s: %v", id, err)}
				return nil
			}
			if f == nil {
				outcomes[i] = outcome{errMsg: fmt.Sprintf("Failure %s not found", id)}
				return nil
			}
			if err := d.Send(gctx, *f); err != nil {
				outcomes[i] = outcome{attempted: true, errMsg: fmt.Sprintf("Failure %s: %v", id, err)}
				return nil
			}
			if err := d.dlq.Delete(gctx, id); err != nil {
				outcomes[i] = outcome{ok: true, attempted: true, errMsg: fmt.Sprintf("Failure %s: delivered but not deleted: %v", id, err)}
				return nil
			}
			outcomes[i] = outcome{ok: true, attempted: true}
			return nil
		})
	}
	_ = g.Wait()

	res := &RetryResult{Errors: []string{}}
	for _, o := range outcomes {
		if o.attempted {
			res.attempted++
			if o.ok {
				res.Success++
			} else {
				res.Failed++
			}
		}
		if o.errMsg != "" {
			res.Errors = append(res.Errors, o.errMsg)
		}
	}
	return res
}

func (d *Dispatcher) post(ctx context.Context, url string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Report timeouts distinctly so operators can tell "down" from "slow".
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return apperr.Wrap(err, apperr.DeadlineExceeded, "notification send timed out")
		}
		return apperr.Wrap(err, apperr.Internal, "notification send failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.New(apperr.Internal, "notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
