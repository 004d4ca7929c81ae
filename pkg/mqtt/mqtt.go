// Package mqtt embeds the broker inside the controller so the dashboard
// and any advisory services connect straight to the unit.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

const (
	TopicStatus  = "solar/status"
	TopicHourly  = "solar/energy/hourly"
	TopicCommand = "solar/command"
)

// Gateway wraps the embedded broker with the small publish/subscribe
// surface the rest of the controller needs.
type Gateway struct {
	server *mqttv2.Server

	mu      sync.Mutex
	lastErr error
}

// Start runs the embedded broker on address until ctx is cancelled.
func Start(ctx context.Context, wg *sync.WaitGroup, address string) (*Gateway, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	err := server.AddListener(tcp)
	if err != nil {
		return nil, err
	}

	err = server.Serve()
	if err != nil {
		return nil, err
	}

	wg.Add(1)
	go func() {
		<-ctx.Done()
		server.Close()
		wg.Done()
	}()

	return &Gateway{server: server}, nil
}

// Publish sends a flat snapshot payload. Errors are for the caller to log
// and drop; publishing must never block or fail the control cycle.
func (g *Gateway) Publish(topic string, payload map[string]interface{}, qos byte, retain bool) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling payload for %s: %w", topic, err)
	}
	err = g.server.Publish(topic, b, retain, qos)
	g.mu.Lock()
	g.lastErr = err
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("error publishing to %s: %w", topic, err)
	}
	return nil
}

// SubscribeCommands feeds raw command payloads to handler.
func (g *Gateway) SubscribeCommands(handler func(payload []byte)) error {
	return g.server.Subscribe(TopicCommand, 1, func(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
		handler(pk.Payload)
	})
}

// Connected reports whether the last publish went through. With an
// embedded broker this is the connectivity flag the watchdog sees.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr == nil
}
