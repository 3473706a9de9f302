// Package config contains the configuration file of the contentfilter
// command.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"gopkg.in/yaml.v3"
)

// DefaultContent is the configuration file written when there is none.
const DefaultContent = `# contentfilter configuration file

# Filter lists.  Each list has a unique id, which is also the name of its
# compiled files, and either a URL to download it from or a local path.
lists:
  - id: easylist
    url: "https://easylist.to/easylist/easylist.txt"
    enabled: true
  - id: easyprivacy
    url: "https://easylist.to/easylist/easyprivacy.txt"
    enabled: true

# Directory of the compiled lists.
storage_dir: "data/lists"

# File with the user rules.
user_rules_file: "data/user_rules.yaml"

# How often the lists are downloaded again, unless a list says otherwise.
update_interval: 24h

# Filtering proxy.
proxy:
  listen_addr: "127.0.0.1:8080"

# Prometheus metrics.  An empty address disables the endpoint.
metrics:
  listen_addr: "127.0.0.1:9090"
`

// Default values.
const (
	defaultStorageDir     = "data/lists"
	defaultUpdateInterval = 24 * time.Hour
	defaultProxyAddr      = "127.0.0.1:8080"
)

// Config is the configuration file structure.
type Config struct {
	Lists          []*List        `yaml:"lists"`
	StorageDir     string         `yaml:"storage_dir"`
	UserRulesFile  string         `yaml:"user_rules_file"`
	Proxy          *ProxyConfig   `yaml:"proxy"`
	Metrics        *MetricsConfig `yaml:"metrics"`
	UpdateInterval time.Duration  `yaml:"update_interval"`
}

// List is a filter list subscription.
type List struct {
	ID      string `yaml:"id"`
	URL     string `yaml:"url,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// ProxyConfig is the configuration of the filtering proxy.
type ProxyConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// MetricsConfig is the configuration of the metrics endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads and validates the configuration file at path.  If the file does
// not exist, it is created with [DefaultContent].
func Load(path string) (c *Config, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = []byte(DefaultContent)
		err = os.WriteFile(path, data, 0o644)
	}

	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates the configuration from data.  Missing fields
// get their default values.
func Parse(data []byte) (c *Config, err error) {
	c = &Config{}
	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	c.setDefaults()

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return c, nil
}

// setDefaults sets the default values of the missing fields.
func (c *Config) setDefaults() {
	if c.StorageDir == "" {
		c.StorageDir = defaultStorageDir
	}

	if c.UpdateInterval == 0 {
		c.UpdateInterval = defaultUpdateInterval
	}

	if c.Proxy == nil {
		c.Proxy = &ProxyConfig{}
	}

	if c.Proxy.ListenAddr == "" {
		c.Proxy.ListenAddr = defaultProxyAddr
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
}

// listIDRe matches the list ids that can be used as file names.
var listIDRe = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// Validate returns an error if c is not valid.
func (c *Config) Validate() (err error) {
	var errs []error
	if c.UpdateInterval < 0 {
		errs = append(errs, fmt.Errorf("update_interval: negative value %s", c.UpdateInterval))
	}

	seen := map[string]struct{}{}
	for i, l := range c.Lists {
		switch {
		case l == nil:
			errs = append(errs, fmt.Errorf("lists: at index %d: %w", i, errors.ErrEmptyValue))
		case !listIDRe.MatchString(l.ID):
			errs = append(errs, fmt.Errorf("lists: at index %d: bad id %q", i, l.ID))
		case l.URL == "" && l.Path == "":
			errs = append(errs, fmt.Errorf("lists: %q: url or path: %w", l.ID, errors.ErrEmptyValue))
		default:
			if _, ok := seen[l.ID]; ok {
				errs = append(errs, fmt.Errorf("lists: duplicate id %q", l.ID))
			}

			seen[l.ID] = struct{}{}
		}
	}

	errs = append(errs, validateAddr("proxy.listen_addr", c.Proxy.ListenAddr, false))
	errs = append(errs, validateAddr("metrics.listen_addr", c.Metrics.ListenAddr, true))

	return errors.Join(errs...)
}

// validateAddr returns an error if addr is not a valid listen address.
func validateAddr(name, addr string, optional bool) (err error) {
	if addr == "" {
		if optional {
			return nil
		}

		return fmt.Errorf("%s: %w", name, errors.ErrEmptyValue)
	}

	_, err = netip.ParseAddrPort(addr)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}

// EnabledIDs returns the ids of the enabled lists in order.
func (c *Config) EnabledIDs() (ids []string) {
	for _, l := range c.Lists {
		if l.Enabled {
			ids = append(ids, l.ID)
		}
	}

	return ids
}

// List returns the list with the given id or nil if there is none.
func (c *Config) List(id string) (l *List) {
	for _, l = range c.Lists {
		if l.ID == id {
			return l
		}
	}

	return nil
}
