package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
	"github.com/suhachi/mystorestory-orders/internal/auth"
	"github.com/suhachi/mystorestory-orders/internal/mutations"
	"github.com/suhachi/mystorestory-orders/internal/orders"
	"github.com/suhachi/mystorestory-orders/internal/validation"
)

// createOrder validates the request, recomputes totals server-side, masks
// the customer projection, and persists the order atomically. An optional
// Idempotency-Key header makes client retries safe.
func (h *handler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	channel := orders.ChannelOffline
	if req.PaymentMethod == orders.MethodAppCard {
		channel = orders.ChannelOnline
	}
	if channel == orders.ChannelOnline && !h.cfg.OnlinePaymentsEnabled {
		respondError(c, apperr.New(apperr.FailedPrecondition, "online payments are disabled"))
		return
	}

	idempKey := c.GetHeader("Idempotency-Key")
	if idempKey != "" {
		rec, err := h.mutStore.Get(ctx, idempKey)
		if err != nil {
			respondError(c, apperr.Wrap(err, apperr.Internal, "idempotency check failed"))
			return
		}
		if rec != nil {
			c.JSON(http.StatusOK, gin.H{"orderId": rec.OrderID, "duplicate": true})
			return
		}
	}

	items := make([]orders.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.LineItem{
			MenuID:   it.MenuID,
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Subtotal: it.Subtotal,
		})
	}

	now := time.Now()
	totals := orders.ComputeTotals(items, req.DeliveryFee)
	customer := orders.Customer{Name: req.Customer.Name, Phone: req.Customer.Phone}
	order := orders.Order{
		OrderID:         orders.NewOrderID(now),
		OrderNumber:     orders.NewOrderNumber(now),
		StoreID:         req.StoreID,
		Items:           items,
		Customer:        &customer,
		CustomerMasked:  orders.MaskCustomer(customer),
		DeliveryAddress: req.DeliveryAddress,
		SpecialRequests: req.SpecialRequests,
		OrderType:       req.OrderType,
		Status:          orders.StatusNew,
		Payment: orders.Payment{
			Enabled:     channel == orders.ChannelOnline,
			Method:      req.PaymentMethod,
			Channel:     channel,
			Status:      orders.PaymentPending,
			TotalAmount: totals.Total,
		},
		Totals:    totals,
		CreatedAt: now.UnixMilli(),
		UpdatedAt: now.UnixMilli(),
	}

	var mut *mutations.Record
	if idempKey != "" {
		rec := h.mutStore.NewRecord(idempKey, order.OrderID, "CREATE")
		mut = &rec
	}

	if err := h.orderStore.Create(ctx, order, h.cfg.MutationsTable, mut); err != nil {
		if errors.Is(err, orders.ErrAlreadyExists) && idempKey != "" {
			// Lost a race against a concurrent retry with the same key.
			rec, gerr := h.mutStore.Get(ctx, idempKey)
			if gerr == nil && rec != nil {
				c.JSON(http.StatusOK, gin.H{"orderId": rec.OrderID, "duplicate": true})
				return
			}
		}
		respondError(c, apperr.Wrap(err, apperr.Internal, "create order failed"))
		return
	}

	// The creator already holds the raw customer data; subsequent public
	// reads only ever see the masked projection.
	c.Header("Location", "/stores/"+order.StoreID+"/orders/"+order.OrderID)
	c.JSON(http.StatusCreated, order)
}

// getOrder is the only read path exposed to public callers; it serves the
// masked projection and never the raw customer record.
func (h *handler) getOrder(c *gin.Context) {
	o, err := h.orderStore.Get(c.Request.Context(), c.Param("storeID"), c.Param("orderID"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			respondError(c, apperr.New(apperr.NotFound, "order %s not found", c.Param("orderID")))
			return
		}
		respondError(c, apperr.Wrap(err, apperr.Internal, "get order failed"))
		return
	}
	c.JSON(http.StatusOK, o.Public())
}

// setStatus applies a status transition for a caller with store access,
// idempotently when a mutation id is supplied.
func (h *handler) setStatus(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("orderID")

	var req validation.SetStatusRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	ident, err := auth.RequireStore(c, req.StoreID)
	if err != nil {
		respondError(c, err)
		return
	}

	target := strings.ToUpper(req.Status)
	if !orders.ValidStatus(target) {
		respondError(c, apperr.New(apperr.InvalidArgument, "unknown status %q", req.Status))
		return
	}

	if req.MutationID != "" {
		rec, err := h.mutStore.Get(ctx, req.MutationID)
		if err != nil {
			respondError(c, apperr.Wrap(err, apperr.Internal, "idempotency check failed"))
			return
		}
		if rec != nil {
			// Already applied; tolerate the client retry.
			c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
			return
		}
	}

	var mut *mutations.Record
	if req.MutationID != "" {
		rec := h.mutStore.NewRecord(req.MutationID, orderID, target)
		mut = &rec
	}

	entry, err := h.orderStore.Transition(ctx, req.StoreID, orderID, target, req.Note, ident.Subject, h.cfg.MutationsTable, mut)
	if err != nil {
		var te *orders.TransitionError
		switch {
		case errors.Is(err, orders.ErrNotFound):
			respondError(c, apperr.New(apperr.NotFound, "order %s not found", orderID))
		case errors.Is(err, orders.ErrMutationApplied):
			c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
		case errors.As(err, &te):
			respondError(c, apperr.New(apperr.FailedPrecondition, "cannot transition from %s to %s", te.From, te.To))
		default:
			respondError(c, apperr.Wrap(err, apperr.Internal, "status update failed"))
		}
		return
	}

	h.publishHistoryEvent(c, entry)

	c.JSON(http.StatusOK, gin.H{"success": true, "historyId": entry.HistoryID})
}

// publishHistoryEvent fans the committed history entry out to the
// notification queue. Delivery is best-effort: the transition has already
// committed, so enqueue failures are logged, not surfaced.
func (h *handler) publishHistoryEvent(c *gin.Context, entry *orders.HistoryEntry) {
	o, err := h.orderStore.Get(c.Request.Context(), entry.StoreID, entry.OrderID)
	if err != nil {
		log.Printf("history event: reload order %s: %v", entry.OrderID, err)
		return
	}
	ev := orders.HistoryEvent{
		HistoryID:   entry.HistoryID,
		OrderID:     entry.OrderID,
		OrderNumber: o.OrderNumber,
		StoreID:     entry.StoreID,
		Status:      entry.Status,
		Note:        entry.Note,
	}
	body, _ := json.Marshal(ev)
	attrs := map[string]string{
		"order_id":       entry.OrderID,
		"correlation_id": c.GetHeader("X-Request-Id"),
	}
	if err := h.publisher.Send(c.Request.Context(), string(body), attrs); err != nil {
		log.Printf("history event: enqueue for order %s: %v", entry.OrderID, err)
	}
}
