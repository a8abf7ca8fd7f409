package service

import "context"

type requestMetaKey struct{}

// RequestMeta is the transport metadata copied into audit entries.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches meta to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the metadata stored on ctx, if any.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
