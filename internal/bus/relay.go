package bus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
)

const updatesExchange = "restaurant_updates"

// Relay carries record-level updates between deployments over a RabbitMQ
// fanout exchange: one copy of {"type":"<ENTITY>_UPDATE","data":<record>}
// per mutation. It complements the store's notification path; duplicate
// delivery is fine because consumers re-list on every event.
type Relay struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	origin string
	lg     *logger.Logger
}

func DialRelay(url string, lg *logger.Logger) (*Relay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(updatesExchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Relay{conn: conn, ch: ch, origin: newRelayOrigin(), lg: lg}, nil
}

func newRelayOrigin() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "relay-unknown"
	}
	return hex.EncodeToString(b)
}

func (r *Relay) Close() {
	if r == nil {
		return
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// Broadcast publishes one update to every listening context.
func (r *Relay) Broadcast(updateType string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", updateType, err)
	}
	body, err := json.Marshal(domain.Update{Type: updateType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s update: %w", updateType, err)
	}
	return r.ch.PublishWithContext(context.Background(), updatesExchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Headers:      amqp.Table{"x-origin": r.origin},
		Body:         body,
	})
}

// Listen binds a private queue to the fanout and republishes remote updates
// on the local bus. Messages from this relay's own origin are dropped.
func (r *Relay) Listen(ctx context.Context, b *Bus) error {
	q, err := r.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := r.ch.QueueBind(q.Name, "", updatesExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := r.ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if origin, _ := d.Headers["x-origin"].(string); origin == r.origin {
					_ = d.Ack(false)
					continue
				}
				var u domain.Update
				if err := json.Unmarshal(d.Body, &u); err != nil {
					r.lg.Error("bad_update", err, nil)
					_ = d.Ack(false)
					continue
				}
				if event, ok := domain.EventForUpdate(u.Type); ok {
					r.lg.Debug("relay_update", map[string]any{"type": u.Type})
					b.Publish(event, u)
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}
