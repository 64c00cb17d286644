// Package config loads the leadflow configuration from a YAML file, an
// optional .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teemow/leadflow/internal/leads"
	"github.com/teemow/leadflow/internal/templates"
)

// DefaultPath is the configuration file read when --config is not given.
// It is optional.
const DefaultPath = "leadflow.yaml"

// Config holds all configuration for the application
type Config struct {
	Sheet     SheetConfig                   `yaml:"sheet"`
	Agent     AgentConfig                   `yaml:"agent"`
	Google    GoogleConfig                  `yaml:"google"`
	Server    ServerConfig                  `yaml:"server"`
	Timezone  string                        `yaml:"timezone"`
	Schedule  string                        `yaml:"schedule"`
	Templates map[string]templates.Template `yaml:"templates"`
}

// SheetConfig locates the lead sheet and its columns.
type SheetConfig struct {
	ID         string        `yaml:"id"`
	Worksheet  string        `yaml:"worksheet"`
	Columns    leads.Columns `yaml:"columns"`
	DateLayout string        `yaml:"date_layout"`
}

// AgentConfig describes the agent the automation sends for.
type AgentConfig struct {
	// Email receives the daily summary and is the From address of lead mail.
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// GoogleConfig holds Google credentials. Inline JSON takes precedence over
// the corresponding file.
type GoogleConfig struct {
	ServiceAccount     string `yaml:"service_account"`
	ServiceAccountFile string `yaml:"service_account_file"`
	ClientSecret       string `yaml:"client_secret"`
	ClientSecretFile   string `yaml:"client_secret_file"`
	Account            string `yaml:"account"`
	TokenDir           string `yaml:"token_dir"`
}

// ServerConfig configures the HTTP trigger and the metrics endpoint.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Addr returns the listen address of the HTTP trigger.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Sheet.Worksheet == "" {
		c.Sheet.Worksheet = "Sheet1"
	}
	c.Sheet.Columns = c.Sheet.Columns.WithDefaults()
	if c.Sheet.DateLayout == "" {
		c.Sheet.DateLayout = leads.DefaultDateLayout
	}
	if c.Google.Account == "" {
		c.Google.Account = "default"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars. A missing
// file at DefaultPath is not an error.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SHEET_ID"); v != "" {
		c.Sheet.ID = v
	}
	if v := os.Getenv("WORKSHEET"); v != "" {
		c.Sheet.Worksheet = v
	}
	if v := os.Getenv("AGENT_EMAIL"); v != "" {
		c.Agent.Email = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT"); v != "" {
		c.Google.ServiceAccount = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT_FILE"); v != "" {
		c.Google.ServiceAccountFile = v
	}
	if v := os.Getenv("CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("CLIENT_SECRET_FILE"); v != "" {
		c.Google.ClientSecretFile = v
	}
	if v := os.Getenv("GOOGLE_ACCOUNT"); v != "" {
		c.Google.Account = v
	}
	if v := os.Getenv("LEADFLOW_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("LEADFLOW_SCHEDULE"); v != "" {
		c.Schedule = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Server.Port = port
	}
	return nil
}

// Location returns the time zone "today" is computed in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ServiceAccountKey returns the service account key JSON.
func (c *Config) ServiceAccountKey() ([]byte, error) {
	return inlineOrFile(c.Google.ServiceAccount, c.Google.ServiceAccountFile, "service account key")
}

// ClientSecretJSON returns the OAuth client secret JSON. A bare client
// object without the "installed" or "web" wrapper is treated as an
// installed app.
func (c *Config) ClientSecretJSON() ([]byte, error) {
	data, err := inlineOrFile(c.Google.ClientSecret, c.Google.ClientSecretFile, "OAuth client secret")
	if err != nil {
		return nil, err
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("invalid OAuth client secret: %w", err)
	}
	if _, ok := top["installed"]; ok {
		return data, nil
	}
	if _, ok := top["web"]; ok {
		return data, nil
	}
	return json.Marshal(map[string]json.RawMessage{"installed": data})
}

func inlineOrFile(inline, file, what string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, fmt.Errorf("no %s configured", what)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	return data, nil
}

// Validate reports every missing or invalid setting a run needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Sheet.ID == "" {
		errs = append(errs, errors.New("sheet ID is required (sheet.id or SHEET_ID)"))
	}
	if c.Agent.Email == "" {
		errs = append(errs, errors.New("agent email is required (agent.email or AGENT_EMAIL)"))
	}
	if c.Google.ServiceAccount == "" && c.Google.ServiceAccountFile == "" {
		errs = append(errs, errors.New("service account key is required (SERVICE_ACCOUNT or SERVICE_ACCOUNT_FILE)"))
	}
	if c.Google.ClientSecret == "" && c.Google.ClientSecretFile == "" {
		errs = append(errs, errors.New("OAuth client secret is required (CLIENT_SECRET or CLIENT_SECRET_FILE)"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := templates.NewRenderer(c.Templates); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
