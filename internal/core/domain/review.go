package domain

import "time"

type ReviewStatus string

const ReviewStatusPending ReviewStatus = "pending"

// PendingReview prompts a purchaser to rate a product they bought. At most
// one record exists per (UserID, ProductID); re-purchase supersedes any
// earlier prompt instead of duplicating it.
type PendingReview struct {
	UserID       string       `json:"user_id"`
	ProductID    string       `json:"product_id"`
	ProductTitle string       `json:"product_title"`
	Status       ReviewStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}
