package engine

import "context"

// Input is the request description a policy decides on.
type Input struct {
	UserID string
	Role   string
	Method string
	Path   string
}

// Evaluator decides whether an authenticated request may proceed.
type Evaluator interface {
	Allow(ctx context.Context, in Input) (bool, error)
}
