package catalog

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAlreadyReviewed = errors.New("product already reviewed")
	ErrReviewNotFound  = errors.New("review not found")
	ErrEmptyReview     = errors.New("review cannot be empty")
)
