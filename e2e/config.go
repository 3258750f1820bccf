package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SESSION_SERVER_ADDR points at a running server; the suite is skipped when empty
	SessionServerAddr string `envconfig:"SESSION_SERVER_ADDR"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_OUTBOX_DIR is the OUTBOX_DIR of the server under test, used to wait for the .vcf
	OutboxDir string `envconfig:"E2E_OUTBOX_DIR"`
	// E2E_DELIVERY_WAIT bounds how long the expiry scenario waits for the sweeper
	DeliveryWait time.Duration `envconfig:"E2E_DELIVERY_WAIT" default:"3m"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
