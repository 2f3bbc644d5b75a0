package httpapi

import (
	"context"
)

// serverBaseCtx is cancelled on shutdown so running chats stop with it.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context derived from req that is also cancelled
// when base is done. The cancel func must be called when the handler ends.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(context.Cause(base)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// callContext joins the request with the server base context and applies the
// configured call timeout.
func callContext(req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancelJoin := joinContexts(serverBaseCtx, req)
	if requestTimeout <= 0 {
		return ctx, cancelJoin
	}
	tctx, cancelTimeout := context.WithTimeout(ctx, requestTimeout)
	return tctx, func() {
		cancelTimeout()
		cancelJoin()
	}
}
