package events

// Topic constants for domain events emitted by the pricing service.
const (
	TopicCartPriced  = "cart.priced"
	TopicCartCleared = "cart.cleared"
)

// DefaultTopics returns the canonical list of topics forwarded to the task queue.
func DefaultTopics() []string {
	return []string{TopicCartPriced, TopicCartCleared}
}
