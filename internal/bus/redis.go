package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscriber bridges a redis pub/sub channel onto an in-process Queue.
// Messages that do not parse are logged and dropped; the channel is a
// fire-and-forget transport, not a durable log.
type Subscriber struct {
	client  *redis.Client
	channel string
	queue   *Queue
	log     *zap.SugaredLogger
}

func NewSubscriber(client *redis.Client, channel string, queue *Queue) *Subscriber {
	return &Subscriber{
		client:  client,
		channel: channel,
		queue:   queue,
		log:     zap.S().Named("bus"),
	}
}

// Run subscribes and forwards messages until the context is canceled.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// force the SUBSCRIBE round trip so a bad connection fails fast
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	s.log.Infof("subscribed to channel %s", s.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				s.log.Warnf("dropping unparseable message on %s: %v", s.channel, err)
				continue
			}
			s.queue.Offer(&msg)
		}
	}
}

// Publish sends a message on the channel. Used by producers and by the
// shutdown path of the main binary.
func Publish(ctx context.Context, client *redis.Client, channel string, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, payload).Err()
}
