// Package authctx carries the verified request subject through
// context.Context so handlers and services share one source of identity.
package authctx

import (
	"context"

	"github.com/skillsenselab/identity/token"
)

type ctxKey int

const (
	subjectKey ctxKey = iota
	requestIDKey
)

// WithSubject returns a context carrying the verified subject.
func WithSubject(ctx context.Context, subject *token.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFrom extracts the verified subject, if any. Guard middleware is the
// only writer; a missing subject means the request never passed
// authentication.
func SubjectFrom(ctx context.Context) (*token.Subject, bool) {
	subject, ok := ctx.Value(subjectKey).(*token.Subject)
	return subject, ok && subject != nil
}

// WithRequestID returns a context carrying the request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom extracts the request correlation id, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
