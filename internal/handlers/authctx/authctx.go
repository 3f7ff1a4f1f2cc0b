package authctx

import (
	"context"
)

type ctxKey string

const subjectKey ctxKey = "subject"

// Create a new context with authenticated subject ID
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectKey, subjectID)
}

// Extract the subject ID from the context
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}
