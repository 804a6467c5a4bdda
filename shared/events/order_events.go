package events

// Order lifecycle event types published on every saga transition.
const (
	OrderCreatedEvent             = "order.created"
	OrderStateChangedEvent        = "order.state.changed"
	OrderFulfilledEvent           = "order.fulfilled"
	OrderFailedEvent              = "order.failed"
	OrderCompensationStalledEvent = "order.compensation.stalled"
	OrderResumeRequestedEvent     = "order.resume.requested"
)
