package queue

import "time"

// Message is a received queue entry. ReceiptHandle identifies this delivery
// and is what Delete and ChangeVisibility take.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	ReceiveCount  int
}

// DeadLetter is the envelope kept for a message moved out of the primary
// queue after too many receives.
type DeadLetter struct {
	ID           string    `json:"id"`
	OriginalID   string    `json:"original_id"`
	Body         []byte    `json:"body"`
	ReceiveCount int       `json:"receive_count"`
	Reason       string    `json:"reason"`
	MovedAt      time.Time `json:"moved_at"`
}

// ReasonMaxReceives is recorded when a message exceeds max_receive_count.
const ReasonMaxReceives = "max_receive_count_exceeded"
