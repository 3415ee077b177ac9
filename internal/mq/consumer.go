package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки доставки.
//
// Ошибки, относящиеся к самому сообщению, обработчик логирует сам и
// возвращает nil. Возвращаемая ошибка означает проблему соединения
// (например, ack не дошёл), и Manager проверяет состояние канала.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение с методами ack/nack.
type Delivery struct {
	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Body возвращает тело сообщения.
func (d *Delivery) Body() []byte {
	return d.Raw.Body
}

// Ack подтверждает сообщение.
func (d *Delivery) Ack() error {
	if err := d.Raw.Ack(false); err != nil {
		return fmt.Errorf("%w: ack tag %d: %v", ErrAcknowledge, d.Raw.DeliveryTag, err)
	}
	return nil
}

// Nack отклоняет сообщение.
// requeue=false — брокер удалит сообщение или отправит его в DLX очереди.
func (d *Delivery) Nack(requeue bool) error {
	if err := d.Raw.Nack(false, requeue); err != nil {
		return fmt.Errorf("%w: nack tag %d: %v", ErrAcknowledge, d.Raw.DeliveryTag, err)
	}
	return nil
}

// prefetch — не больше одного неподтверждённого сообщения на consumer.
const prefetch = 1

// startConsume устанавливает prefetch и регистрирует consumer на текущем канале.
func (m *Manager) startConsume() Event {
	if m.ch == nil || m.ch.IsClosed() {
		return EventChannelClosed
	}

	if err := m.ch.Qos(prefetch, 0, false); err != nil {
		return m.consumeFailed(fmt.Errorf("set qos: %w", err))
	}

	deliveries, err := m.ch.Consume(
		m.topology.Queue, // queue
		m.consumerTag,    // consumer tag
		false,            // auto-ack (ack вручную)
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		return m.consumeFailed(fmt.Errorf("consume: %w", err))
	}

	m.deliveries = deliveries
	m.logger.Info("consumer started",
		"queue", m.topology.Queue,
		"consumer_tag", m.consumerTag,
		"prefetch", prefetch,
	)

	return EventConsumeStarted
}

// consumeFailed классифицирует ошибку consume: закрытый канал или временный сбой.
func (m *Manager) consumeFailed(err error) Event {
	if m.ch.IsClosed() {
		m.logger.Warn("consume failed on closed channel", "queue", m.topology.Queue, "error", err)
		return EventChannelClosed
	}
	m.logger.Error("consume failed", "queue", m.topology.Queue, "error", err)
	return EventConsumeFailed
}

// processDeliveries передаёт доставки обработчику по одной, пока поток не закончится.
func (m *Manager) processDeliveries(ctx context.Context) Event {
	for {
		select {
		case <-ctx.Done():
			return EventCancelled

		case raw, ok := <-m.deliveries:
			if !ok {
				m.deliveries = nil
				if m.ch.IsClosed() {
					return EventChannelClosed
				}
				m.logger.Warn("deliveries channel closed, consumer cancelled", "queue", m.topology.Queue)
				return EventConsumeFailed
			}

			if err := m.handler(ctx, &Delivery{Raw: raw}); err != nil {
				m.logger.Error("delivery handler failed",
					"queue", m.topology.Queue,
					"delivery_tag", raw.DeliveryTag,
					"error", err,
				)
				if m.ch.IsClosed() {
					return EventChannelClosed
				}
			}
		}
	}
}
