package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cerego/persistent-enum/enum"
	"github.com/cerego/persistent-enum/logger"
)

// Reloader broadcasts and receives enum reload events over Redis PubSub so
// a fleet of processes can re-synchronize after a deploy or out-of-band
// schema change. Delivery is best-effort: a missed event means a process
// keeps serving its previous snapshot, nothing worse.
type Reloader struct {
	redis    *redis.Client
	registry *enum.Registry
	channel  string
	instance string
	log      *logger.Logger
}

// event is the wire shape of a reload broadcast
type event struct {
	Instance string `json:"instance"`
	Reason   string `json:"reason"`
}

// NewReloader creates a reloader for the given channel. Each reloader gets
// a random instance id so it can skip events it published itself.
func NewReloader(redisClient *redis.Client, registry *enum.Registry, channel string, log *logger.Logger) *Reloader {
	return &Reloader{
		redis:    redisClient,
		registry: registry,
		channel:  channel,
		instance: uuid.NewString(),
		log:      log,
	}
}

// Publish broadcasts a reload event to every listening process
func (r *Reloader) Publish(ctx context.Context, reason string) error {
	payload, err := json.Marshal(event{Instance: r.instance, Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to encode reload event: %w", err)
	}

	if err := r.redis.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish reload event: %w", err)
	}

	r.log.Info("published enum reload event", "channel", r.channel, "reason", reason)
	return nil
}

// Listen subscribes to the reload channel and re-synchronizes the registry
// on every event until ctx is cancelled. Events published by this process
// are skipped (the publisher already holds fresh snapshots).
func (r *Reloader) Listen(ctx context.Context) error {
	pubsub := r.redis.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for confirmation that subscription was successful
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", r.channel, err)
	}

	r.log.Info("listening for enum reload events", "channel", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reload listener stopping")
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("reload subscription to %q closed", r.channel)
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *Reloader) handle(ctx context.Context, payload string) {
	var ev event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.log.Warn("ignoring malformed reload event", "error", err)
		return
	}
	if ev.Instance == r.instance {
		return
	}

	r.log.Info("reload event received, reinitializing enums", "reason", ev.Reason)
	if err := r.registry.ReinitializeAll(ctx); err != nil {
		r.log.Error("failed to reinitialize enums after reload event", "error", err)
	}
}
