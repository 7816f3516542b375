package observability

import "context"

// NoOpObserver discards every event. Stateless, safe to share.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}
