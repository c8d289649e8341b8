package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/suhachi/mystorestory-orders/internal/awsx"
	"github.com/suhachi/mystorestory-orders/internal/config"
	"github.com/suhachi/mystorestory-orders/internal/notify"
	"github.com/suhachi/mystorestory-orders/internal/orders"
)

const fanoutLimit = 4

// Processor consumes order history events and fans them out to the store's
// push tokens and Slack webhook. Delivery failures become DLQ entries, not
// inline retries.
type Processor struct {
	tokens       *notify.TokenStore
	dispatcher   *notify.Dispatcher
	slackWebhook string
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(dynamo awsx.DynamoDBAPI, cfg config.Config) *Processor {
	dlq := notify.NewDLQStore(dynamo, cfg.DLQTable)
	return &Processor{
		tokens:       notify.NewTokenStore(dynamo, cfg.TokensTable),
		dispatcher:   notify.NewDispatcher(dlq, cfg.PushEndpoint, cfg.PushServerKey),
		slackWebhook: cfg.SlackWebhookURL,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Failed deliveries are already dead-lettered; log and move on
			// so one bad message never blocks the batch.
			log.Printf("worker error: %v", err)
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev orders.HistoryEvent
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log.Printf("[worker] history event order=%s store=%s status=%s", ev.OrderID, ev.StoreID, ev.Status)

	title, body := statusMessage(ev)

	tokens, err := p.tokens.ListByStore(ctx, ev.StoreID)
	if err != nil {
		return fmt.Errorf("list tokens for store %s: %w", ev.StoreID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutLimit)
	for _, tok := range tokens {
		g.Go(func() error {
			f := notify.Failure{
				FailureID: uuid.NewString(),
				Channel:   notify.ChannelFCM,
				Token:     tok.Token,
				Title:     title,
				Body:      body,
			}
			if err := p.dispatcher.DeliverOrDeadLetter(gctx, f); err != nil {
				log.Printf("[worker] push to %s dead-lettered: %v", tok.Token, err)
			}
			return nil
		})
	}
	if p.slackWebhook != "" {
		g.Go(func() error {
			f := notify.Failure{
				FailureID:  uuid.NewString(),
				Channel:    notify.ChannelSlack,
				WebhookURL: p.slackWebhook,
				Text:       fmt.Sprintf("%s — %s", title, body),
			}
			if err := p.dispatcher.DeliverOrDeadLetter(gctx, f); err != nil {
				log.Printf("[worker] slack dead-lettered: %v", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func statusMessage(ev orders.HistoryEvent) (title, body string) {
	switch ev.Status {
	case orders.StatusConfirmed:
		return "Order confirmed", fmt.Sprintf("Order #%s has been confirmed.", ev.OrderNumber)
	case orders.StatusPreparing:
		return "Order in preparation", fmt.Sprintf("Order #%s is being prepared.", ev.OrderNumber)
	case orders.StatusReady:
		return "Order ready", fmt.Sprintf("Order #%s is ready for pickup.", ev.OrderNumber)
	case orders.StatusFulfilled:
		return "Order fulfilled", fmt.Sprintf("Order #%s is complete. Thank you!", ev.OrderNumber)
	case orders.StatusCancelled:
		body := fmt.Sprintf("Order #%s has been cancelled.", ev.OrderNumber)
		if ev.Note != "" {
			body += " Reason: " + ev.Note
		}
		return "Order cancelled", body
	default:
		return "Order update", fmt.Sprintf("Order #%s is now %s.", ev.OrderNumber, ev.Status)
	}
}
