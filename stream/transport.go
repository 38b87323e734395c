package stream

import "context"

// Transport connects a session to a remote assistant. Start returns the
// inbound event channel; the transport closes it when the stream ends.
// Implementations emit an ErrorEvent before closing on failure.
type Transport interface {
	// Start begins consuming the remote stream. The returned channel is
	// closed when the stream ends or ctx is cancelled.
	Start(ctx context.Context) (<-chan Event, error)

	// Send transmits one outbound envelope.
	Send(ctx context.Context, env Envelope) error

	// Stop tears the transport down. Idempotent.
	Stop() error
}
