package orders

// All lifecycle events share one topic; consumers switch on the envelope's
// event_type. Partitioning by order id keeps a single order's history ordered.
const TopicOrderEvents = "order.events"
