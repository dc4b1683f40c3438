package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/secproto/internal/cache"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/task"
	"github.com/dropDatabas3/secproto/internal/versiongate"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Inventory struct {
		URL                string        `yaml:"url"`
		Username           string        `yaml:"username"`
		Password           string        `yaml:"password"`
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
		Timeout            time.Duration `yaml:"timeout"`
	} `yaml:"inventory"`

	SSH struct {
		Username   string        `yaml:"username"`
		Password   string        `yaml:"password"`
		Port       int           `yaml:"port"`
		Timeout    time.Duration `yaml:"timeout"`
		HostsFile  string        `yaml:"hosts_file"`
		Service    string        `yaml:"service"`
		KnownHosts string        `yaml:"known_hosts"`
	} `yaml:"ssh"`

	Change struct {
		Port         int    `yaml:"port"`
		ServiceName  string `yaml:"service_name"`
		OptionKey    string `yaml:"option_key"`
		EnableValue  string `yaml:"enable_value"`
		DisableValue string `yaml:"disable_value"`
	} `yaml:"change"`

	Polling struct {
		Cluster task.Budget `yaml:"cluster"`
		Host    task.Budget `yaml:"host"`
	} `yaml:"polling"`

	Version struct {
		Enabled          *bool         `yaml:"enabled"`
		Command          string        `yaml:"command"`
		MinVersion       string        `yaml:"min_version"`
		MinUpdate        string        `yaml:"min_update"`
		MinHostBuild     string        `yaml:"min_host_build"`
		MinEndpointBuild string        `yaml:"min_endpoint_build"`
		CacheTTL         time.Duration `yaml:"cache_ttl"`
	} `yaml:"version"`

	Cache struct {
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	History struct {
		DSN string `yaml:"dsn"`
	} `yaml:"history"`

	Report struct {
		Dir  string `yaml:"dir"`
		CSV  *bool  `yaml:"csv"`
		JSON bool   `yaml:"json"`
	} `yaml:"report"`

	Notify struct {
		SMTP struct {
			Host     string   `yaml:"host"`
			Port     int      `yaml:"port"`
			Username string   `yaml:"username"`
			Password string   `yaml:"password"`
			From     string   `yaml:"from"`
			To       []string `yaml:"to"`
			TLS      string   `yaml:"tls"` // auto | starttls | ssl | none
		} `yaml:"smtp"`
	} `yaml:"notify"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Valores de fábrica de la herramienta.
const (
	DefaultPort          = 8182
	DefaultServiceName   = "vSphere HA"
	DefaultOptionKey     = "das.config.vmacore.ssl.sslOptions"
	DefaultEnableValue   = "16924672"
	DefaultDisableValue  = "50479104"
	DefaultRemoteService = "TSM-SSH"
	DefaultVersionCmd    = "esxcli system version get"
)

// Default devuelve una config sin archivo: defaults más env.
func Default() *Config {
	var c Config
	c.setDefaults()
	c.applyEnvOverrides()
	return &c
}

// Load lee el YAML, completa defaults y aplica el entorno.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	c.setDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// sane defaults
func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Inventory.Timeout == 0 {
		c.Inventory.Timeout = 30 * time.Second
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.SSH.Timeout == 0 {
		c.SSH.Timeout = 30 * time.Second
	}
	if c.SSH.Service == "" {
		c.SSH.Service = DefaultRemoteService
	}
	if c.Change.Port == 0 {
		c.Change.Port = DefaultPort
	}
	if c.Change.ServiceName == "" {
		c.Change.ServiceName = DefaultServiceName
	}
	if c.Change.OptionKey == "" {
		c.Change.OptionKey = DefaultOptionKey
	}
	if c.Change.EnableValue == "" {
		c.Change.EnableValue = DefaultEnableValue
	}
	if c.Change.DisableValue == "" {
		c.Change.DisableValue = DefaultDisableValue
	}
	if c.Polling.Cluster.Interval == 0 {
		c.Polling.Cluster.Interval = 2 * time.Second
	}
	if c.Polling.Cluster.MaxAttempts == 0 {
		c.Polling.Cluster.MaxAttempts = 10
	}
	if c.Polling.Host.Interval == 0 {
		c.Polling.Host.Interval = 20 * time.Second
	}
	if c.Polling.Host.MaxAttempts == 0 {
		c.Polling.Host.MaxAttempts = 30
	}
	if c.Version.Enabled == nil {
		on := true
		c.Version.Enabled = &on
	}
	if c.Version.Command == "" {
		c.Version.Command = DefaultVersionCmd
	}
	if c.Version.MinVersion == "" {
		c.Version.MinVersion = "5.5.0"
	}
	if c.Version.MinUpdate == "" {
		c.Version.MinUpdate = "3"
	}
	if c.Version.MinHostBuild == "" {
		c.Version.MinHostBuild = "3248547"
	}
	if c.Version.MinEndpointBuild == "" {
		c.Version.MinEndpointBuild = "3252642"
	}
	if c.Version.CacheTTL == 0 {
		c.Version.CacheTTL = 10 * time.Minute
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "secproto:"
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "."
	}
	if c.Report.CSV == nil {
		on := true
		c.Report.CSV = &on
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
	if c.Notify.SMTP.TLS == "" {
		c.Notify.SMTP.TLS = "auto"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// INVENTORY
	if v, ok := getEnvStr("INVENTORY_URL"); ok {
		c.Inventory.URL = v
	}
	if v, ok := getEnvStr("INVENTORY_USERNAME"); ok {
		c.Inventory.Username = v
	}
	if v, ok := getEnvStr("INVENTORY_PASSWORD"); ok {
		c.Inventory.Password = v
	}
	if v, ok := getEnvBool("INVENTORY_INSECURE"); ok {
		c.Inventory.InsecureSkipVerify = v
	}

	// SSH
	if v, ok := getEnvStr("SSH_USERNAME"); ok {
		c.SSH.Username = v
	}
	if v, ok := getEnvStr("SSH_PASSWORD"); ok {
		c.SSH.Password = v
	}
	if v, ok := getEnvStr("HOSTS_FILE"); ok {
		c.SSH.HostsFile = v
	}

	// POLLING
	if v, ok := getEnvDur("POLL_HOST_INTERVAL"); ok {
		c.Polling.Host.Interval = v
	}
	if v, ok := getEnvInt("POLL_HOST_MAX_ATTEMPTS"); ok {
		c.Polling.Host.MaxAttempts = v
	}
	if v, ok := getEnvDur("POLL_CLUSTER_INTERVAL"); ok {
		c.Polling.Cluster.Interval = v
	}
	if v, ok := getEnvInt("POLL_CLUSTER_MAX_ATTEMPTS"); ok {
		c.Polling.Cluster.MaxAttempts = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}

	if v, ok := getEnvStr("HISTORY_DSN"); ok {
		c.History.DSN = v
	}
	if v, ok := getEnvStr("REPORT_DIR"); ok {
		c.Report.Dir = v
	}

	// NOTIFY
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.Notify.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.Notify.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.Notify.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.Notify.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.Notify.SMTP.From = v
	}
	if v, ok := getEnvCSV("ALERT_TO"); ok {
		c.Notify.SMTP.To = v
	}

	if v, ok := getEnvStr("METRICS_TEXTFILE"); ok {
		c.Metrics.Textfile = v
	}
}

// Validate rechaza configuraciones con las que una corrida no puede terminar bien.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Polling.Cluster.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("polling.cluster: %w", err))
	}
	if err := c.Polling.Host.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("polling.host: %w", err))
	}
	if c.Change.Port < 1 || c.Change.Port > 65535 {
		errs = append(errs, fmt.Errorf("change.port fuera de rango: %d", c.Change.Port))
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh.port fuera de rango: %d", c.SSH.Port))
	}
	if strings.TrimSpace(c.Change.OptionKey) == "" {
		errs = append(errs, errors.New("change.option_key vacío"))
	}
	if c.Change.EnableValue == c.Change.DisableValue {
		errs = append(errs, errors.New("change.enable_value y change.disable_value deben diferir"))
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind desconocido %q", c.Cache.Kind))
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		errs = append(errs, errors.New("cache.redis.addr requerido con cache.kind=redis"))
	}
	switch c.Notify.SMTP.TLS {
	case "auto", "starttls", "ssl", "none":
	default:
		errs = append(errs, fmt.Errorf("notify.smtp.tls desconocido %q", c.Notify.SMTP.TLS))
	}
	return errors.Join(errs...)
}

// ---- Vistas para los componentes ----

func (c *Config) EncodedValues() protocol.EncodedValues {
	return protocol.EncodedValues{Enable: c.Change.EnableValue, Disable: c.Change.DisableValue}
}

func (c *Config) VersionGate() versiongate.Options {
	return versiongate.Options{
		Minimum: versiongate.Minimum{
			Version:       c.Version.MinVersion,
			Update:        c.Version.MinUpdate,
			HostBuild:     c.Version.MinHostBuild,
			EndpointBuild: c.Version.MinEndpointBuild,
		},
		Command:  c.Version.Command,
		Service:  c.SSH.Service,
		CacheTTL: c.Version.CacheTTL,
		Disabled: c.Version.Enabled != nil && !*c.Version.Enabled,
	}
}

func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Kind:       c.Cache.Kind,
		Addr:       c.Cache.Redis.Addr,
		Password:   c.Cache.Redis.Password,
		DB:         c.Cache.Redis.DB,
		Prefix:     c.Cache.Redis.Prefix,
		DefaultTTL: c.Version.CacheTTL,
	}
}

// NotifyEnabled: hay SMTP y destinatarios.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.SMTP.Host != "" && c.Notify.SMTP.From != "" && len(c.Notify.SMTP.To) > 0
}
