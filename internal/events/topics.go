package events

// Topics emitted by the order lifecycle.
const (
	TopicOrderCreated = "order.created"
	TopicOrderPaid    = "order.paid"
)
