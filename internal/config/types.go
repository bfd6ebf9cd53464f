// Package config loads catalogc configuration from defaults, a catalogc.yaml
// file, CATALOGC_ environment variables, and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/driver"
)

// Default configuration values.
const (
	DefaultCatalog       = "flow.yaml"
	DefaultBuildDB       = ".catalogc/build.db"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat     = "text"
	DefaultConcurrency   = 8
	DefaultDriverTimeout = driver.DefaultTimeout
)

// ConfigFileNames are searched, in order, when no config file is given.
var ConfigFileNames = []string{"catalogc.yaml", "catalogc.yml"}

var (
	outputModes = []string{"auto", "text", "markdown", "json"}
	logFormats  = []string{"text", "json"}
)

// Config holds all catalogc configuration options.
type Config struct {
	// Catalog is the resolved catalog tables file to validate.
	Catalog     string `koanf:"catalog"`
	BuildDB     string `koanf:"build_db"`
	Output      string `koanf:"output"`
	Verbose     bool   `koanf:"verbose"`
	LogFormat   string `koanf:"log_format"`
	Concurrency int    `koanf:"concurrency"`
	// Drivers configures remote connectors by endpoint type.
	Drivers map[string]DriverConfig `koanf:"drivers"`

	// ConfigFile is the config file which was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// DriverConfig addresses the connector validating one endpoint type.
type DriverConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	// Retries of transient failures. Zero uses the driver default, negative disables retries.
	Retries int `koanf:"retries"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if !slices.Contains(outputModes, c.Output) {
		return fmt.Errorf("invalid output %q: must be one of %v", c.Output, outputModes)
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("invalid log_format %q: must be one of %v", c.LogFormat, logFormats)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative")
	}
	for _, name := range c.driverNames() {
		d := c.Drivers[name]
		if !catalog.EndpointType(name).Valid() {
			return fmt.Errorf("drivers.%s: unknown endpoint type", name)
		}
		if d.URL == "" {
			return fmt.Errorf("drivers.%s.url is required", name)
		}
		if d.Timeout < 0 {
			return fmt.Errorf("drivers.%s.timeout cannot be negative", name)
		}
	}
	return nil
}

// NewDrivers returns a router dispatching each configured endpoint type to its connector.
// Endpoint types without a connector fail validation of their materializations.
func (c *Config) NewDrivers(logger *slog.Logger) (*driver.Router, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	router := driver.NewRouter(nil)
	for _, name := range c.driverNames() {
		d := c.Drivers[name]
		client, err := driver.NewHTTPClient(driver.HTTPConfig{
			URL:     d.URL,
			Timeout: d.Timeout,
			Retries: d.Retries,
			Logger:  logger.With(slog.String("endpoint_type", name)),
		})
		if err != nil {
			return nil, fmt.Errorf("drivers.%s: %w", name, err)
		}
		router.Handle(catalog.EndpointType(name), client)
	}
	return router, nil
}

func (c *Config) driverNames() []string {
	names := make([]string, 0, len(c.Drivers))
	for name := range c.Drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
