package notify

// Delivery channels.
const (
	ChannelFCM   = "fcm"
	ChannelSlack = "slack"
)

// Failure is one undeliverable notification, persisted until an operator
// retry succeeds or deletes it.
type Failure struct {
	FailureID  string `dynamodbav:"failure_id"` // PK
	Channel    string `dynamodbav:"channel"`    // fcm | slack
	Token      string `dynamodbav:"token,omitempty"`
	Title      string `dynamodbav:"title,omitempty"`
	Body       string `dynamodbav:"body,omitempty"`
	WebhookURL string `dynamodbav:"webhook_url,omitempty"`
	Text       string `dynamodbav:"text,omitempty"`
	LastError  string `dynamodbav:"last_error,omitempty"`
	CreatedAt  int64  `dynamodbav:"created_at"` // epoch millis
}

// Token is a registered push-notification token.
type Token struct {
	Token      string `dynamodbav:"token"` // PK
	StoreID    string `dynamodbav:"store_id"`
	LastUsedAt int64  `dynamodbav:"last_used_at"` // epoch millis
}

// RetryResult aggregates a best-effort retry batch.
type RetryResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`

	attempted int
}

// OK reports overall batch success: at least one retry succeeded, or none
// were attempted.
func (r *RetryResult) OK() bool {
	return r.Success > 0 || r.attempted == 0
}
