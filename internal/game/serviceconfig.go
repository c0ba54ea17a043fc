package game

import "fmt"

// ServiceConfig is the client bootstrap document mapping each logical service
// to the endpoint it is reachable at. It is generated on demand from the
// server's current bind address and never persisted.
type ServiceConfig struct {
	APIServiceHost         string `json:"apiservice_host"`
	ConfigServiceHost      string `json:"configservice_host"`
	LoginServiceHost       string `json:"loginservice_host"`
	MatchingServiceHost    string `json:"matchingservice_host"`
	ServerDBServiceHost    string `json:"serverdb_host,omitempty"`
	TransactionServiceHost string `json:"transactionservice_host"`
	PublisherLock          string `json:"publisher_lock"`
}

// publisherLock is the release channel expected by supported game clients.
const publisherLock = "rad15_live"

// NewServiceConfig builds a ServiceConfig for a server reachable at host:port.
// The serverdb endpoint is only included when the config is generated for
// game server operators; the API key, when required, is embedded in its URI.
func NewServiceConfig(host string, port int, serverDBAPIKey string, includeServerDB bool) ServiceConfig {
	base := fmt.Sprintf("ws://%s:%d", host, port)

	config := ServiceConfig{
		APIServiceHost:         base + "/api",
		ConfigServiceHost:      base + "/config",
		LoginServiceHost:       base + "/login",
		MatchingServiceHost:    base + "/matching",
		TransactionServiceHost: base + "/transaction",
		PublisherLock:          publisherLock,
	}

	if includeServerDB {
		config.ServerDBServiceHost = base + "/serverdb"
		if serverDBAPIKey != "" {
			config.ServerDBServiceHost += "?api_key=" + serverDBAPIKey
		}
	}

	return config
}
