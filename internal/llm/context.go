package llm

import "context"

type purposeKey struct{}

// PurposeUnknown labels calls made outside a provider chain.
const PurposeUnknown = "unknown"

// WithPurpose attaches a purpose label to the context for event logging.
// The chain sets the role name, chat or validate.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok && v != "" {
		return v
	}
	return PurposeUnknown
}
