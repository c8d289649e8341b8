package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
	"github.com/suhachi/mystorestory-orders/internal/orders"
	"github.com/suhachi/mystorestory-orders/internal/payments"
	"github.com/suhachi/mystorestory-orders/internal/validation"
)

// confirmPayment cross-checks the client-claimed amount against the stored
// order before anything reaches the gateway. The amount arrives from a
// client-controlled redirect and is never trusted without this check.
func (h *handler) confirmPayment(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.ConfirmPaymentRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	o, err := h.orderStore.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			respondError(c, apperr.New(apperr.NotFound, "order %s not found", req.OrderID))
			return
		}
		respondError(c, apperr.Wrap(err, apperr.Internal, "get order failed"))
		return
	}

	// A repeated confirm for the same transaction returns the stored
	// outcome instead of re-invoking gateway approval.
	if o.Payment.Status == orders.PaymentPaid && o.Payment.TID == req.TID {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"orderId": o.OrderID,
			"status":  orders.PaymentPaid,
			"result":  "already-approved",
		})
		return
	}

	if req.Amount != o.Payment.TotalAmount {
		if merr := h.orderStore.MarkPaymentTampering(ctx, o.OrderID, req.Amount); merr != nil {
			log.Printf("confirm payment: mark tampering for %s: %v", o.OrderID, merr)
		}
		respondError(c, apperr.New(apperr.Aborted,
			"claimed amount %d does not match order total %d", req.Amount, o.Payment.TotalAmount))
		return
	}

	result, err := h.gateway.Approve(ctx, req.TID, req.Amount)
	if err != nil {
		if merr := h.orderStore.MarkPaymentFailed(ctx, o.OrderID, err.Error()); merr != nil {
			log.Printf("confirm payment: mark failed for %s: %v", o.OrderID, merr)
		}
		respondError(c, err)
		return
	}
	if !result.Approved() {
		reason := "gateway declined: " + result.ResultCode + " " + result.ResultMsg
		if merr := h.orderStore.MarkPaymentFailed(ctx, o.OrderID, reason); merr != nil {
			log.Printf("confirm payment: mark failed for %s: %v", o.OrderID, merr)
		}
		respondError(c, apperr.New(apperr.Internal, "%s", reason))
		return
	}

	if err := h.orderStore.MarkPaid(ctx, o.OrderID, req.TID); err != nil {
		respondError(c, apperr.Wrap(err, apperr.Internal, "record approval failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orderId": o.OrderID,
		"status":  orders.PaymentPaid,
		"result":  result,
	})
}

// paymentWebhook handles out-of-band gateway notifications (e.g.
// virtual-account deposits). It is a second, independent trust boundary:
// the gateway's signature is verified before anything in the payload is
// believed, even though the direct confirmation path exists.
func (h *handler) paymentWebhook(c *gin.Context) {
	tid := c.PostForm("TID")
	moid := c.PostForm("Moid")
	amtStr := c.PostForm("Amt")
	resultCode := c.PostForm("ResultCode")
	signature := c.PostForm("Signature")

	if tid == "" || moid == "" || amtStr == "" || resultCode == "" || signature == "" {
		c.String(http.StatusBadRequest, "missing fields")
		return
	}
	amt, err := strconv.ParseInt(amtStr, 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "bad amount")
		return
	}

	if !h.gateway.VerifySignature(tid, amt, signature) {
		c.String(http.StatusBadRequest, "invalid signature")
		return
	}

	ctx := c.Request.Context()
	o, err := h.orderStore.GetByID(ctx, moid)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.String(http.StatusNotFound, "unknown order")
			return
		}
		c.String(http.StatusInternalServerError, "lookup failed")
		return
	}

	if amt != o.Payment.TotalAmount {
		if merr := h.orderStore.MarkPaymentTampering(ctx, o.OrderID, amt); merr != nil {
			log.Printf("webhook: mark tampering for %s: %v", o.OrderID, merr)
		}
		c.String(http.StatusConflict, "amount mismatch")
		return
	}

	switch resultCode {
	case payments.ResultCardApproved, payments.ResultVbankDeposit:
		if err := h.orderStore.MarkPaid(ctx, o.OrderID, tid); err != nil {
			c.String(http.StatusInternalServerError, "record approval failed")
			return
		}
	default:
		if err := h.orderStore.MarkPaymentFailed(ctx, o.OrderID, "gateway result "+resultCode); err != nil {
			c.String(http.StatusInternalServerError, "record failure failed")
			return
		}
	}

	c.String(http.StatusOK, "OK")
}
