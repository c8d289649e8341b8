// Package handlers wires the HTTP surface of the order lifecycle backend.
package handlers

import (
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
	"github.com/suhachi/mystorestory-orders/internal/auth"
	"github.com/suhachi/mystorestory-orders/internal/awsx"
	"github.com/suhachi/mystorestory-orders/internal/config"
	"github.com/suhachi/mystorestory-orders/internal/mutations"
	"github.com/suhachi/mystorestory-orders/internal/notify"
	"github.com/suhachi/mystorestory-orders/internal/orders"
	"github.com/suhachi/mystorestory-orders/internal/payments"
	"github.com/suhachi/mystorestory-orders/internal/templates"
	"github.com/suhachi/mystorestory-orders/internal/validation"
)

// HandlerConfig groups dependencies for the API handlers. Clients are
// initialized once by the process entry point and injected here; handlers
// never read ambient global state.
type HandlerConfig struct {
	DynamoDBClient awsx.DynamoDBAPI
	SQSClient      awsx.SQSAPI
	Cfg            config.Config
}

type handler struct {
	cfg        config.Config
	v          *validatorv10.Validate
	orderStore *orders.Store
	mutStore   *mutations.Store
	dlq        *notify.DLQStore
	dispatcher *notify.Dispatcher
	tmplStore  *templates.Store
	gateway    *payments.Gateway
	publisher  *awsx.Publisher
}

// RegisterRoutes registers the API routes.
func RegisterRoutes(r *gin.Engine, hc HandlerConfig) {
	dlq := notify.NewDLQStore(hc.DynamoDBClient, hc.Cfg.DLQTable)
	h := &handler{
		cfg:        hc.Cfg,
		v:          validation.New(),
		orderStore: orders.NewStore(hc.DynamoDBClient, hc.Cfg.OrdersTable, hc.Cfg.HistoryTable),
		mutStore:   mutations.NewStore(hc.DynamoDBClient, hc.Cfg.MutationsTable, hc.Cfg.MutationTTL),
		dlq:        dlq,
		dispatcher: notify.NewDispatcher(dlq, hc.Cfg.PushEndpoint, hc.Cfg.PushServerKey),
		tmplStore:  templates.NewStore(hc.DynamoDBClient, hc.Cfg.TemplatesTable),
		gateway:    payments.NewGateway(hc.Cfg.GatewayURL, hc.Cfg.MerchantID, hc.Cfg.MerchantSecret),
		publisher:  awsx.NewPublisher(hc.SQSClient, hc.Cfg.QueueURL),
	}

	r.Use(auth.Middleware(hc.Cfg.JWTSecret))

	r.POST("/orders", h.createOrder)
	r.GET("/stores/:storeID/orders/:orderID", h.getOrder)
	r.POST("/orders/:orderID/status", h.setStatus)
	r.POST("/payments/confirm", h.confirmPayment)
	r.POST("/payments/webhook", h.paymentWebhook)
	r.POST("/notifications/retry", h.retryNotify)
	r.POST("/stores/:storeID/templates/:templateID/render", h.renderTemplate)
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error":   apperr.CodeOf(err),
		"message": apperr.MessageOf(err),
	})
}
