package mutations

import "time"

// Record marks a caller-supplied mutation id as applied. Existence of the
// record means "already applied"; records are created once and never updated.
type Record struct {
	MutationID string    `dynamodbav:"mutation_id"` // PK
	OrderID    string    `dynamodbav:"order_id,omitempty"`
	Status     string    `dynamodbav:"status,omitempty"` // status the mutation applied
	CreatedAt  time.Time `dynamodbav:"created_at"`
	ExpiresAt  int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
