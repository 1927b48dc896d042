package logging

import "context"

type requestIDKey struct{}

// WithRequestID 在 ctx 上挂接请求 ID，设备交换日志据此关联 HTTP 请求
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID ctx 上的请求 ID，没有时返回空串
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
