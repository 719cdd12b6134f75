package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is the payload published on the relay channel.
type Message struct {
	Signal string    `json:"signal"`
	At     time.Time `json:"at"`
}

// RedisRelay carries signal raises between processes over Redis pub/sub.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
	board   *Board
	logger  *zap.Logger
}

// NewRedisRelay creates a relay publishing on channel and raising signals on board.
func NewRedisRelay(rdb redis.UniversalClient, channel string, board *Board, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		board:   board,
		logger:  logger.Named("relay").With(zap.String("channel", channel)),
	}
}

// Publish announces that the named signal was raised.
func (r *RedisRelay) Publish(ctx context.Context, name string) error {
	payload, err := json.Marshal(Message{Signal: name, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding signal message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing signal %s: %w", name, err)
	}
	r.logger.Debug("signal published", zap.String("signal", name))
	return nil
}

// Start subscribes to the channel and raises board signals for every message
// received until ctx is done or the returned stop function is called. The
// subscription is confirmed before Start returns.
func (r *RedisRelay) Start(ctx context.Context) (stop func() error, err error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.loop(ctx, sub.Channel())
	}()

	r.logger.Info("relay started")
	return func() error {
		cancel()
		err := sub.Close()
		<-done
		return err
	}, nil
}

func (r *RedisRelay) loop(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Signal == "" {
		r.logger.Warn("ignoring malformed signal message", zap.String("payload", payload), zap.Error(err))
		return
	}
	changed := r.board.Raise(msg.Signal)
	r.logger.Debug("signal received", zap.String("signal", msg.Signal), zap.Bool("changed", changed))
}
