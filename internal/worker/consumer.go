package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer configures QoS and starts consuming job messages.
func (e *Engine) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := e.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(e.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := e.rabbitClient.Consume(e.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	e.logger.Info("Consumer started",
		slog.String("consumer_tag", e.workerID),
		slog.Int("prefetch_count", e.prefetchCount),
	)

	return deliveries, nil
}

// dispatch decodes deliveries and feeds the worker pool.
func (e *Engine) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Dispatcher stopped - context canceled")
			return

		case <-e.stopChan:
			e.logger.Info("Dispatcher stopped")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				e.logger.Warn("Delivery channel closed")
				return
			}

			var msg JobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil || msg.JobID == "" {
				e.logger.Error("Dropping malformed job message",
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
				// Malformed messages can never succeed; don't requeue.
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					e.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}
			msg.DeliveryTag = delivery.DeliveryTag

			select {
			case e.jobsChan <- &msg:
			case <-ctx.Done():
				return
			case <-e.stopChan:
				return
			}
		}
	}
}
