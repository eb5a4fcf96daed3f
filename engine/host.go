package engine

import "context"

type hostKey struct{}

// withHost attaches the host serving the current engine call.
func withHost(ctx context.Context, h Host) context.Context {
	return context.WithValue(ctx, hostKey{}, h)
}

// hostFrom returns the host serving the current engine call, or nil.
func hostFrom(ctx context.Context) Host {
	h, _ := ctx.Value(hostKey{}).(Host)
	return h
}

// copyText copies an engine text range so it outlives memory growth.
func copyText(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
