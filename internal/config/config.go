// Package config holds the deployment configuration read from the
// environment once at process start and injected into handlers.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// DynamoDB table names.
	OrdersTable    string
	HistoryTable   string
	MutationsTable string
	DLQTable       string
	TokensTable    string
	TemplatesTable string

	// Notification fan-out queue.
	QueueURL string

	// Auth.
	JWTSecret string

	// Payment gateway.
	GatewayURL     string
	MerchantID     string
	MerchantSecret string

	// Online (in-app card) checkout can be disabled platform-wide
	// without a deploy.
	OnlinePaymentsEnabled bool

	// Delivery pricing used by upstream quote callers; kept here so the
	// free-delivery threshold lives in one place.
	DeliveryFee           int64
	FreeDeliveryThreshold int64

	// Slack webhook for store operator notifications.
	SlackWebhookURL string

	// Push delivery endpoint (FCM-compatible).
	PushEndpoint string
	PushServerKey string

	// Idempotency record retention.
	MutationTTL time.Duration
}

func Default() Config {
	return Config{
		OrdersTable:           "orders",
		HistoryTable:          "order_history",
		MutationsTable:        "mutations",
		DLQTable:              "notify_dlq",
		TokensTable:           "push_tokens",
		TemplatesTable:        "templates",
		OnlinePaymentsEnabled: true,
		DeliveryFee:           3000,
		FreeDeliveryThreshold: 15000,
		PushEndpoint:          "https://fcm.googleapis.com/fcm/send",
		MutationTTL:           48 * time.Hour,
	}
}

// FromEnv returns the default config overridden by environment variables.
func FromEnv() Config {
	c := Default()
	setStr(&c.OrdersTable, "ORDERS_TABLE")
	setStr(&c.HistoryTable, "HISTORY_TABLE")
	setStr(&c.MutationsTable, "MUTATIONS_TABLE")
	setStr(&c.DLQTable, "NOTIFY_DLQ_TABLE")
	setStr(&c.TokensTable, "PUSH_TOKENS_TABLE")
	setStr(&c.TemplatesTable, "TEMPLATES_TABLE")
	setStr(&c.QueueURL, "NOTIFY_QUEUE_URL")
	setStr(&c.JWTSecret, "JWT_SECRET")
	setStr(&c.GatewayURL, "PAY_GATEWAY_URL")
	setStr(&c.MerchantID, "PAY_MERCHANT_ID")
	setStr(&c.MerchantSecret, "PAY_MERCHANT_SECRET")
	setStr(&c.SlackWebhookURL, "SLACK_WEBHOOK_URL")
	setStr(&c.PushEndpoint, "PUSH_ENDPOINT")
	setStr(&c.PushServerKey, "PUSH_SERVER_KEY")
	setBool(&c.OnlinePaymentsEnabled, "ONLINE_PAYMENTS_ENABLED")
	setInt64(&c.DeliveryFee, "DELIVERY_FEE")
	setInt64(&c.FreeDeliveryThreshold, "FREE_DELIVERY_THRESHOLD")
	return c
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "1", "true", "TRUE":
		*dst = true
	case "0", "false", "FALSE":
		*dst = false
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
