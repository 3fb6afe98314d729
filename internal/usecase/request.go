package usecase

import "context"

const maxRequestIDLength = 128

type requestIDKey struct{}

// WithRequestID tags ctx with the caller's idempotency key. MarkRedeemed
// redeems at most once per key and answers repeats with the stored result.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
