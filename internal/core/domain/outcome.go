package domain

type DeliveryOutcome string

const (
	// OutcomeDelivered means the attestation API accepted the record (2xx).
	OutcomeDelivered DeliveryOutcome = "delivered"
	// OutcomeRejectedPermanently means the API refused the record (4xx).
	// Retrying the same payload cannot succeed.
	OutcomeRejectedPermanently DeliveryOutcome = "rejected_permanently"
	// OutcomeRetryableFailure means delivery failed for transient reasons
	// (5xx, transport error, timeout) and retries were exhausted. The record
	// must be re-delivered on a later scan of the same range.
	OutcomeRetryableFailure DeliveryOutcome = "retryable_failure"
)

// Resolved reports whether the outcome is final for cursor purposes.
// Delivered and permanently rejected records are both settled; only a
// retryable failure holds the cursor back.
func (o DeliveryOutcome) Resolved() bool {
	return o == OutcomeDelivered || o == OutcomeRejectedPermanently
}

// Delivery is the result of pushing one record at the attestation API,
// including however many in-place retries the sink spent on it.
type Delivery struct {
	Outcome  DeliveryOutcome
	Attempts int
	Err      error
}
