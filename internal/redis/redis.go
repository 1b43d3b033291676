package redis

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	gpsKey        = "gps"
	satellitesKey = "gps:satellites"
	vehicleKey    = "vehicle"

	// CommandKey is the list other services push gps commands onto.
	CommandKey = "scooter:gps"

	commandPollTimeout = time.Second
)

// Client wraps the Redis client with the gps hash layout
type Client struct {
	client *redis.Client
	logger *log.Logger
}

// New creates a new Redis client
func New(redisURL string, logger *log.Logger) (*Client, error) {
	if redisURL == "" {
		redisURL = "redis://127.0.0.1:6379"
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}

	return &Client{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

// Ping checks if the Redis server is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PublishGPSState sets one field of the gps hash and notifies subscribers
func (c *Client) PublishGPSState(ctx context.Context, field, value string) error {
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, gpsKey, field, value)
	pipe.Publish(ctx, gpsKey, field)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Printf("Unable to set gps.%s in redis: %v", field, err)
		return errors.Wrap(err, "cannot write to redis")
	}
	return nil
}

// PublishLocation stores a location report in the gps hash. Fields absent
// from data are removed so stale values never outlive a lost fix.
func (c *Client) PublishLocation(ctx context.Context, data map[string]interface{}, stale []string) error {
	pipe := c.client.Pipeline()
	if len(stale) > 0 {
		pipe.HDel(ctx, gpsKey, stale...)
	}
	pipe.HSet(ctx, gpsKey, data)
	pipe.Publish(ctx, gpsKey, "timestamp")
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Printf("Unable to set location in redis: %v", err)
		return errors.Wrap(err, "cannot write location to redis")
	}
	return nil
}

// PublishSatellites replaces the satellite summary hash
func (c *Client) PublishSatellites(ctx context.Context, data map[string]interface{}) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, satellitesKey)
	pipe.HSet(ctx, satellitesKey, data)
	pipe.Publish(ctx, satellitesKey, "used")
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Printf("Unable to set satellites in redis: %v", err)
		return errors.Wrap(err, "cannot write satellites to redis")
	}
	return nil
}

// StartCommandHandler pops commands from the command list until ctx is
// done. Handler errors are logged and do not stop the loop.
func (c *Client) StartCommandHandler(ctx context.Context, handler func(string) error) {
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}

			res, err := c.client.BRPop(ctx, commandPollTimeout, CommandKey).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Printf("Failed to read %s: %v", CommandKey, err)
				time.Sleep(commandPollTimeout)
				continue
			}

			// BRPOP returns the key followed by the value
			if len(res) != 2 {
				continue
			}
			if err := handler(res[1]); err != nil {
				c.logger.Printf("Command %q failed: %v", res[1], err)
			}
		}
	}()
}

// StartVehicleStateWatcher calls handler with vehicle.state whenever the
// vehicle service announces a state change, and once with the current value.
func (c *Client) StartVehicleStateWatcher(ctx context.Context, handler func(string) error) error {
	pubsub := c.client.Subscribe(ctx, vehicleKey)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return errors.Wrap(err, "failed to subscribe to vehicle")
	}

	notify := func() {
		state, err := c.client.HGet(ctx, vehicleKey, "state").Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			c.logger.Printf("Unable to read vehicle state: %v", err)
			return
		}
		if err := handler(state); err != nil {
			c.logger.Printf("Vehicle state %q handler failed: %v", state, err)
		}
	}

	go func() {
		defer pubsub.Close()
		notify()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == "state" {
					notify()
				}
			}
		}
	}()
	return nil
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.client.Close()
}
