package enums

// OutboxEventType identifies the domain event carried by an outbox row.
type OutboxEventType string

const (
	OutboxEventOrderCreated           OutboxEventType = "order.created"
	OutboxEventOrderPaid              OutboxEventType = "order.paid"
	OutboxEventOrderDeliveryUpdated   OutboxEventType = "order.delivery_updated"
	OutboxEventOrderAdminTransitioned OutboxEventType = "order.admin_transitioned"
	OutboxEventOrderCancelled         OutboxEventType = "order.cancelled"
)

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateOrder OutboxAggregateType = "order"
)

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}

// OutboxDLQErrorReason records why a poisoned outbox event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts   OutboxDLQErrorReason = "max_attempts_exceeded"
	OutboxDLQReasonNonRetryable  OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonEncodeFailure OutboxDLQErrorReason = "encode_failure"
)

// String implements fmt.Stringer.
func (d OutboxDLQErrorReason) String() string {
	return string(d)
}
