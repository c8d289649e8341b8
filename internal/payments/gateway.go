// Package payments talks to the payment gateway's server-to-server API and
// verifies the signatures it exchanges with us. Client-asserted amounts are
// never trusted; callers cross-check against the stored order before any
// call reaches this package.
package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
)

// Gateway result codes.
const (
	ResultCardApproved = "3001" // card authorization approved
	ResultVbankDeposit = "4110" // virtual-account deposit confirmed
)

const approveTimeout = 5 * time.Second

// ApprovalResult is the gateway's response to a server-to-server approval.
type ApprovalResult struct {
	ResultCode string `json:"resultCode"`
	ResultMsg  string `json:"resultMsg"`
	TID        string `json:"tid"`
	Amount     int64  `json:"amount"`
}

// Approved reports whether the result code is a success code.
func (r *ApprovalResult) Approved() bool {
	return r.ResultCode == ResultCardApproved || r.ResultCode == ResultVbankDeposit
}

// Gateway is a client for the payment gateway's approval endpoint.
type Gateway struct {
	baseURL        string
	merchantID     string
	merchantSecret string
	httpClient     *http.Client
}

// NewGateway returns a Gateway with a bounded HTTP client.
func NewGateway(baseURL, merchantID, merchantSecret string) *Gateway {
	return &Gateway{
		baseURL:        baseURL,
		merchantID:     merchantID,
		merchantSecret: merchantSecret,
		httpClient:     &http.Client{Timeout: approveTimeout},
	}
}

// Signature computes hex(sha256(tid + merchantID + amount + secret)).
func Signature(tid, merchantID string, amount int64, secret string) string {
	sum := sha256.Sum256([]byte(tid + merchantID + strconv.FormatInt(amount, 10) + secret))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a gateway-supplied signature over (tid, merchant,
// amount) in constant time.
func (g *Gateway) VerifySignature(tid string, amount int64, signature string) bool {
	want := Signature(tid, g.merchantID, amount, g.merchantSecret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// Approve performs the server-to-server approval call for tid. Network
// errors and non-2xx responses surface as internal errors; a declined
// result code comes back as a non-approved ApprovalResult.
func (g *Gateway) Approve(ctx context.Context, tid string, amount int64) (*ApprovalResult, error) {
	payload, err := json.Marshal(map[string]any{
		"tid":      tid,
		"mid":      g.merchantID,
		"amt":      amount,
		"signData": Signature(tid, g.merchantID, amount, g.merchantSecret),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal approval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/approve", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build approval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(err, apperr.DeadlineExceeded, "gateway approval timed out")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "gateway approval call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.Internal, "gateway approval returned status %d", resp.StatusCode)
	}

	var result ApprovalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "decode gateway approval response")
	}
	return &result, nil
}
