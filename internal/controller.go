package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/api"
	"github.com/nexus-vr/nexus/internal/configsvc"
	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/login"
	"github.com/nexus-vr/nexus/internal/matching"
	"github.com/nexus-vr/nexus/internal/relay"
	"github.com/nexus-vr/nexus/internal/serverdb"
	"github.com/nexus-vr/nexus/internal/storage"
	"github.com/nexus-vr/nexus/internal/storage/database"
	"github.com/nexus-vr/nexus/internal/storage/filesystem"
	"github.com/nexus-vr/nexus/internal/storage/redisstore"
	"github.com/nexus-vr/nexus/internal/telemetry"
	"github.com/nexus-vr/nexus/internal/transaction"
)

// Controller is the main entrypoint. It's responsible for initializing the
// shared resources (storage, logging, the game server registry), declaring
// the services, and launching everything.
type Controller struct {
	Config *core.Config

	logger      *logrus.Logger
	store       *storage.Storage
	registry    *serverdb.Registry
	relayServer *relay.Server
	apiServer   *api.Server
	publisher   *telemetry.Publisher
}

// Start runs the server until ctx is canceled. Failure to initialize any
// component is terminal.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all services.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	defer c.shutdown()

	c.store, err = c.openStorage(ctx)
	if err != nil {
		c.logger.Errorf("error initializing storage: %v", err)
		return err
	}
	if err := c.deployResources(ctx); err != nil {
		c.logger.Errorf("error deploying initial resources: %v", err)
		return err
	}
	if err := c.writeServiceConfig(); err != nil {
		c.logger.Errorf("error writing service config: %v", err)
		return err
	}

	c.declareServices()

	if err := c.relayServer.Start(ctx); err != nil {
		c.logger.Errorf("error starting server: %v", err)
		return err
	}

	if c.Config.API.Enabled {
		c.apiServer = api.NewServer(c.Config, c.logger, c.relayServer, c.registry)
		if err := c.apiServer.Start(); err != nil {
			c.logger.Errorf("error starting status API: %v", err)
			return err
		}
	}
	if c.Config.Telemetry.Enabled {
		c.publisher = telemetry.NewPublisher(c.Config, c.logger)
		if err := c.publisher.Start(); err != nil {
			// Telemetry is best effort, never fatal.
			c.logger.Warnf("telemetry disabled: %v", err)
			c.publisher = nil
		}
	}

	go c.consumeEvents(ctx)
	go c.statsLoop(ctx)

	<-ctx.Done()
	return nil
}

// Set up all of the services we want to run on the listener.
func (c *Controller) declareServices() {
	c.registry = serverdb.NewRegistry()
	engine := matching.NewEngine(c.registry,
		c.Config.Matching.LowPingPreference,
		c.Config.Matching.ForceAnySession,
	)

	c.relayServer = relay.NewServer(c.Config, c.logger)
	c.registry.SetObserver(func(serverID uint64, registered bool) {
		if registered {
			c.relayServer.Emit(relay.GameServerRegistered{ServerID: serverID})
		} else {
			c.relayServer.Emit(relay.GameServerUnregistered{ServerID: serverID})
		}
	})
	c.relayServer.AddService("login", "/login",
		login.NewService(c.Config, c.logger, c.store), "")
	c.relayServer.AddService("config", "/config",
		configsvc.NewService(c.logger, c.store), "")
	c.relayServer.AddService("matching", "/matching",
		matching.NewService(c.Config, c.logger, engine), "")
	c.relayServer.AddService("serverdb", "/serverdb",
		serverdb.NewService(c.Config, c.logger, c.registry), c.Config.ServerDB.APIKey)
	c.relayServer.AddService("transaction", "/transaction",
		transaction.NewService(c.logger, c.store), "")
}

func (c *Controller) openStorage(ctx context.Context) (*storage.Storage, error) {
	switch c.Config.Storage.Backend {
	case "", "filesystem":
		return filesystem.NewStorage(c.Config.Storage.DatabaseDir, !c.Config.Storage.DisableCache)
	case "redis":
		return redisstore.NewStorage(ctx, c.Config.Storage.RedisURL)
	case "database":
		return database.NewStorage(
			c.Config.Storage.Driver,
			c.Config.Storage.DSN,
			c.Config.Storage.DatabaseLoggingEnabled,
		)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", c.Config.Storage.Backend)
	}
}

// deployResources seeds the store on first run. A store error here is fatal;
// a half-deployed store is not something the services can work around.
func (c *Controller) deployResources(ctx context.Context) error {
	exists, err := c.store.CriticalResourcesExist(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	var extraSymbols map[string]game.Symbol
	if c.Config.GameExecutablePath != "" {
		extraSymbols, err = game.ExtractSymbols(c.Config.GameExecutablePath)
		if err != nil {
			c.logger.Warnf("skipping symbol extraction: %v", err)
		} else {
			c.logger.Infof("extracted %d symbols from %s", len(extraSymbols), c.Config.GameExecutablePath)
		}
	}

	c.logger.Info("deploying initial resources")
	return storage.DeployInitialResources(ctx, c.store, extraSymbols)
}

// writeServiceConfig emits the client bootstrap document to the configured
// path so operators can distribute it alongside the game.
func (c *Controller) writeServiceConfig() error {
	if c.Config.ServiceConfigPath == "" {
		return nil
	}

	serviceConfig := game.NewServiceConfig(
		c.Config.PublicHost(), c.Config.Port, c.Config.ServerDB.APIKey, true)
	data, err := json.MarshalIndent(serviceConfig, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.Config.ServiceConfigPath, data, 0644)
}

// consumeEvents drains the server's event stream for packet tracing and
// telemetry forwarding. Services do their own operational logging.
func (c *Controller) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.relayServer.Events():
			switch ev := event.(type) {
			case relay.PacketReceived:
				c.logger.Debugf("[%s] RECV from %s:\n%s",
					ev.Service.Name(), ev.Peer.Address(), spew.Sdump(ev.Packet))
			case relay.PacketSent:
				c.logger.Debugf("[%s] SEND to %s:\n%s",
					ev.Service.Name(), ev.Peer.Address(), spew.Sdump(ev.Packet))
			case relay.GameServerRegistered, relay.GameServerUnregistered:
				// Registry changes refresh the exported counters between
				// stats ticks.
				if c.publisher != nil {
					c.publisher.PublishPeerStats(c.serviceCounts(), c.registry.Count())
				}
			}
			if c.publisher != nil {
				c.publisher.HandleEvent(event)
			}
		}
	}
}

// statsLoop periodically reports per-service peer counts, in the same shape
// operators already scrape from the logs.
func (c *Controller) statsLoop(ctx context.Context) {
	if c.Config.StatsInterval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(c.Config.StatsInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts := c.serviceCounts()
			parts := []string{fmt.Sprintf("gameservers: %d", c.registry.Count())}
			for _, service := range c.relayServer.Services() {
				parts = append(parts, fmt.Sprintf("%s: %d", service.Name(), counts[service.Name()]))
			}
			c.logger.Infof("[PEERSTATS] %s", strings.Join(parts, ", "))

			if c.publisher != nil {
				c.publisher.PublishPeerStats(counts, c.registry.Count())
			}
		}
	}
}

func (c *Controller) serviceCounts() map[string]int {
	counts := make(map[string]int)
	for _, service := range c.relayServer.Services() {
		counts[service.Name()] = service.PeerCount()
	}
	return counts
}

func (c *Controller) shutdown() {
	if c.publisher != nil {
		c.publisher.Stop()
	}
	if c.apiServer != nil {
		c.apiServer.Stop()
	}
	if c.relayServer != nil {
		c.relayServer.Stop()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Errorf("error closing storage: %v", err)
		}
	}
}
