package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
)

// Config holds all configuration for the fleet controller in a flat
// structure, mirroring spec.md §6's configuration table plus the ambient
// fields needed to run the process (HTTP port, backend selection, logging).
type Config struct {
	// HTTP edge settings
	Port int `envconfig:"PORT" default:"8080"`

	// Backend selection
	StoreBackend        string `envconfig:"STORE_BACKEND" default:"memory"`      // "memory" or "redis"
	ProvisionerBackend  string `envconfig:"PROVISIONER_BACKEND" default:"mock"`  // "mock" or "kubernetes"
	RedisURI            string `envconfig:"REDIS_URI" default:"redis://localhost:6379/0"`
	KubeNamespacePrefix string `envconfig:"KUBE_NAMESPACE_PREFIX" default:"party-cluster-"`

	// Reconciliation policy (spec.md §6)
	RefreshInterval                  time.Duration `envconfig:"REFRESH_INTERVAL" default:"1s"`
	MinimumClusterCount              int           `envconfig:"MINIMUM_CLUSTER_COUNT" default:"10"`
	MaximumClusterCount              int           `envconfig:"MAXIMUM_CLUSTER_COUNT" default:"100"`
	MaximumUsersPerCluster           int           `envconfig:"MAXIMUM_USERS_PER_CLUSTER" default:"10"`
	MaxClusterUptime                 time.Duration `envconfig:"MAX_CLUSTER_UPTIME" default:"2h"`
	UserCapacityHighPercentThreshold float64       `envconfig:"USER_CAPACITY_HIGH_PERCENT_THRESHOLD" default:"0.75"`
	UserCapacityLowPercentThreshold  float64       `envconfig:"USER_CAPACITY_LOW_PERCENT_THRESHOLD" default:"0.25"`

	// Admission policy
	JoinExpiryGuard time.Duration `envconfig:"JOIN_EXPIRY_GUARD" default:"5m"` // §4.5 step 4's "5 minutes"

	// Notification
	NotifierBackend   string        `envconfig:"NOTIFIER_BACKEND" default:"log"` // "log" or "webhook"
	WebhookURL        string        `envconfig:"WEBHOOK_URL" default:""`
	WebhookTimeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	WebhookRetries    int           `envconfig:"WEBHOOK_RETRIES" default:"3"`
	WebhookRetryDelay time.Duration `envconfig:"WEBHOOK_RETRY_DELAY" default:"500ms"`

	// Logging settings
	DevelopmentLogging bool `envconfig:"DEVELOPMENT_LOGGING" default:"false"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// Module provides the config dependency to the fx container.
var Module = fx.Options(
	fx.Provide(LoadConfig),
)
