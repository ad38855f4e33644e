package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/metrics"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/outbox/idempotency"
	"github.com/primecutco/primecut-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches order lifecycle events and persists the in-app
// notifications behind them: admins hear about paid orders, customers
// hear about status movement.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	adminUserIDs []uuid.UUID
	metrics      *metrics.EngineMetrics
	logg         *logger.Logger
}

// NewConsumer builds the order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, notify config.NotifyConfig, engineMetrics *metrics.EngineMetrics, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	adminIDs := make([]uuid.UUID, 0, len(notify.AdminUserIDs))
	for _, raw := range notify.AdminUserIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid admin user id %q: %w", raw, err)
		}
		adminIDs = append(adminIDs, id)
	}

	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		adminUserIDs: adminIDs,
		metrics:      engineMetrics,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.OutboxEventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order.paid payload: %w", err)
		}
		return c.notifyAdminsOrderPaid(ctx, payload)

	case enums.OutboxEventOrderDeliveryUpdated:
		var payload payloads.DeliveryUpdatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order.delivery_updated payload: %w", err)
		}
		return c.notifyOwner(ctx, payload.OwnerID, payload.OrderID, enums.NotificationTypeDeliveryUpdate,
			"Delivery update",
			fmt.Sprintf("Your order is now %s.", humanizeStatus(payload.ComputedStatus)))

	case enums.OutboxEventOrderAdminTransitioned:
		var payload payloads.AdminTransitionedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order.admin_transitioned payload: %w", err)
		}
		return c.notifyOwner(ctx, payload.OwnerID, payload.OrderID, enums.NotificationTypeDeliveryUpdate,
			"Order update",
			fmt.Sprintf("Your order is now %s.", humanizeStatus(payload.ComputedStatus)))

	case enums.OutboxEventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order.cancelled payload: %w", err)
		}
		return c.notifyOwner(ctx, payload.OwnerID, payload.OrderID, enums.NotificationTypeOrderAlert,
			"Order cancelled",
			"Your order has been cancelled. Contact us if this is unexpected.")

	default:
		c.logg.Info(logCtx, "event type not handled")
		return nil
	}
}

func (c *Consumer) notifyAdminsOrderPaid(ctx context.Context, payload payloads.OrderPaidEvent) error {
	if len(c.adminUserIDs) == 0 {
		c.logg.Warn(ctx, "no admin recipients configured for paid-order alerts")
		return nil
	}

	link := orderLink(payload.OrderID)
	message := fmt.Sprintf("New paid order for HK$%.2f is ready to prepare.", float64(payload.TotalCents)/100)
	for _, adminID := range c.adminUserIDs {
		notification := &models.Notification{
			UserID:  adminID,
			Type:    enums.NotificationTypeOrderAlert,
			Title:   "New order",
			Message: message,
			Link:    &link,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("persist admin notification: %w", err)
		}
		c.metrics.IncNotificationPersisted()
	}
	return nil
}

func (c *Consumer) notifyOwner(ctx context.Context, ownerID, orderID uuid.UUID, kind enums.NotificationType, title, message string) error {
	link := orderLink(orderID)
	notification := &models.Notification{
		UserID:  ownerID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("persist owner notification: %w", err)
	}
	c.metrics.IncNotificationPersisted()
	return nil
}

func orderLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/orders/%s", orderID)
}

func humanizeStatus(status enums.ComputedStatus) string {
	return strings.ToLower(strings.ReplaceAll(string(status), "_", " "))
}
