package session

import "context"

type contextKey string

const handleKey contextKey = "session.handle"

// Handle binds a session id to the machine that owns its state.
type Handle struct {
	ID      string
	Machine *Machine
}

// WithHandle adds a session handle to the context
func WithHandle(ctx context.Context, handle Handle) context.Context {
	return context.WithValue(ctx, handleKey, handle)
}

// FromContext retrieves the session handle from the context
func FromContext(ctx context.Context) (Handle, bool) {
	handle, ok := ctx.Value(handleKey).(Handle)
	return handle, ok && handle.Machine != nil
}
