package ctxutil

import "context"

type requestDataKey struct{}

// RequestData identifies the caller of a request. UserID is the JWT subject
// when Authenticated is set; otherwise it came from the X-User-Id header or
// the request body.
type RequestData struct {
	UserID        string
	Authenticated bool
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// UserID returns the caller id stored on ctx, or "".
func UserID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return ""
}
