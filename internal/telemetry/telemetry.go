// Package telemetry forwards server lifecycle events to an MQTT broker so
// external dashboards can watch population and matching activity without
// touching the game protocol.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/relay"
)

const (
	TopicStatus  = "status"
	TopicPeers   = "peers"
	TopicServers = "gameservers"
)

// Publisher owns one MQTT client and translates relay events into retained
// JSON telemetry messages under the configured topic prefix.
type Publisher struct {
	config *core.Config
	logger *logrus.Logger
	client mqtt.Client
	prefix string
}

func NewPublisher(config *core.Config, logger *logrus.Logger) *Publisher {
	prefix := config.Telemetry.Topic
	if prefix == "" {
		prefix = "nexus"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Telemetry.BrokerURL)
	if config.Telemetry.ClientID != "" {
		opts.SetClientID(config.Telemetry.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("nexus-%s", config.Hostname))
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("telemetry broker connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("telemetry broker connection lost: %v", err)
	})

	return &Publisher{
		config: config,
		logger: logger,
		client: mqtt.NewClient(opts),
		prefix: prefix,
	}
}

// Start connects to the broker. Telemetry is best effort; a broker outage
// never affects the game services.
func (p *Publisher) Start() error {
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to telemetry broker: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Stop() {
	p.publish(TopicStatus, map[string]any{"event": "stopped"})
	p.client.Disconnect(1000)
}

// HandleEvent publishes the subset of relay events worth watching remotely.
func (p *Publisher) HandleEvent(event relay.Event) {
	switch ev := event.(type) {
	case relay.ServerStarted:
		p.publish(TopicStatus, map[string]any{"event": "started"})
	case relay.PeerAuthenticated:
		p.publish(TopicPeers, map[string]any{
			"event":        "authenticated",
			"user_id":      ev.UserID.String(),
			"display_name": ev.DisplayName,
			"service":      ev.Service.Name(),
		})
	case relay.PeerDisconnected:
		p.publish(TopicPeers, map[string]any{
			"event":   "disconnected",
			"service": ev.Service.Name(),
		})
	case relay.AuthorizationResult:
		p.publish(TopicServers, map[string]any{
			"event":    "authorization",
			"service":  ev.ServiceName,
			"approved": ev.Approved,
		})
	case relay.GameServerRegistered:
		p.publish(TopicServers, map[string]any{
			"event":     "gameserver_registered",
			"server_id": ev.ServerID,
		})
	case relay.GameServerUnregistered:
		p.publish(TopicServers, map[string]any{
			"event":     "gameserver_unregistered",
			"server_id": ev.ServerID,
		})
	}
}

// PublishPeerStats pushes the periodic per-service peer counts.
func (p *Publisher) PublishPeerStats(counts map[string]int, gameServers int) {
	p.publish(TopicServers, map[string]any{
		"event":         "peer_stats",
		"gameservers":   gameServers,
		"service_peers": counts,
	})
}

func (p *Publisher) publish(topic string, payload map[string]any) {
	if !p.client.IsConnected() {
		return
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warnf("marshaling telemetry message: %v", err)
		return
	}

	token := p.client.Publish(p.prefix+"/"+topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			p.logger.Warnf("publishing telemetry to %s: %v", topic, token.Error())
		}
	}()
}
