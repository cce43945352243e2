// Package config provides configuration management for go-homepage.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var AppVersion = "-unset-" // will be set at build time

const (
	DefaultListenHost        = "127.0.0.1"
	DefaultListenPort        = 8080
	DefaultStaticDir         = "static"
	DefaultSessionCookieName = "homepage-session"
	DefaultShutdownGrace     = 0 * time.Second

	// MinSessionSecretLen is the minimum accepted length of the session secret in bytes.
	MinSessionSecretLen = 32

	// EnvPrefix is prepended to every environment variable read by LoadEnv.
	EnvPrefix = "HOMEPAGE_"
)

var (
	ErrMissingSessionSecret = errors.New("session secret not set")
	ErrShortSessionSecret   = fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretLen)
	ErrInvalidPort          = errors.New("invalid port number")
	ErrMissingStaticDir     = errors.New("static dir not set")
	ErrMissingTLSFiles      = errors.New("SSL enabled but cert_file or key_file not specified")
)

// MainConfig holds the main configuration for go-homepage
type MainConfig struct {
	Web     *WebConfig    `json:"web"`
	Runtime RuntimeConfig `json:"runtime"`

	AppVersion string `json:"app_version"` // Application version, set at build time
}

// WebConfig holds web server configuration
type WebConfig struct {
	ListenHost string `json:"listen_host"`
	ListenPort int    `json:"listen_port"`
	SSL        bool   `json:"ssl"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	StaticDir  string `json:"static_dir"`
	Debug      bool   `json:"debug"`

	// Session cookie
	SessionSecret     string `json:"-"`
	SessionCookieName string `json:"session_cookie_name"`
	CookieSecure      bool   `json:"cookie_secure"`

	// ShutdownGrace is how long in-flight requests may drain on shutdown.
	// Zero closes every connection immediately.
	ShutdownGrace time.Duration `json:"shutdown_grace"`
	BehindProxy   bool          `json:"behind_proxy"`

	// Optional side listeners, disabled when empty
	MetricsAddr string `json:"metrics_addr,omitempty"`
	PprofAddr   string `json:"pprof_addr,omitempty"`
}

// RuntimeConfig is process-wide logging state. It is built once at process
// start and applied before the first request is served.
type RuntimeConfig struct {
	Debug     bool `json:"debug"`
	Backtrace bool `json:"backtrace"`
}

// NewDefaultConfig returns a configuration with default values
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		Web: &WebConfig{
			ListenHost:        DefaultListenHost,
			ListenPort:        DefaultListenPort,
			StaticDir:         DefaultStaticDir,
			SessionCookieName: DefaultSessionCookieName,
			ShutdownGrace:     DefaultShutdownGrace,
		},
		Runtime: RuntimeConfig{
			Debug:     true,
			Backtrace: true,
		},
		AppVersion: AppVersion,
	}
}

// Addr returns the host:port the web server binds to.
func (w *WebConfig) Addr() string {
	return net.JoinHostPort(w.ListenHost, strconv.Itoa(w.ListenPort))
}

// Validate checks the web configuration before the server is constructed.
func (w *WebConfig) Validate() error {
	if w.ListenPort < 1 || w.ListenPort > 65535 {
		return fmt.Errorf("%w: %d (must be between 1 and 65535)", ErrInvalidPort, w.ListenPort)
	}
	if strings.TrimSpace(w.StaticDir) == "" {
		return ErrMissingStaticDir
	}
	if w.SSL && (w.CertFile == "" || w.KeyFile == "") {
		return ErrMissingTLSFiles
	}
	if w.SessionSecret == "" {
		return ErrMissingSessionSecret
	}
	if len(w.SessionSecret) < MinSessionSecretLen {
		return ErrShortSessionSecret
	}
	if w.SessionCookieName == "" {
		w.SessionCookieName = DefaultSessionCookieName
	}
	return nil
}

// EnsureSessionSecret fills in an ephemeral secret when none is configured.
// Only debug mode may run without an operator supplied secret.
func (w *WebConfig) EnsureSessionSecret() error {
	if w.SessionSecret != "" {
		return nil
	}
	if !w.Debug {
		return fmt.Errorf("%w: set %sSESSION_SECRET or --session-secret (see 'genkey')", ErrMissingSessionSecret, EnvPrefix)
	}
	secret, err := GenerateSecret()
	if err != nil {
		return err
	}
	w.SessionSecret = secret
	log.Printf("[CONFIG]: WARNING: no session secret configured, using an ephemeral one (sessions will not survive a restart)")
	return nil
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, MinSessionSecretLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
		log.Printf("[CONFIG]: Loaded environment from %s", file)
	}
	return nil
}

// LoadEnv overrides the configuration with HOMEPAGE_* environment variables.
func (c *MainConfig) LoadEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	w := c.Web
	env := func(key string) string { return strings.TrimSpace(getenv(EnvPrefix + key)) }

	if v := env("LISTEN_HOST"); v != "" {
		w.ListenHost = v
	}
	if v := env("LISTEN_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sLISTEN_PORT=%q", ErrInvalidPort, EnvPrefix, v)
		}
		w.ListenPort = p
	}
	if v := env("STATIC_DIR"); v != "" {
		w.StaticDir = v
	}
	if v := env("SESSION_SECRET"); v != "" {
		w.SessionSecret = v
	}
	if v := env("SESSION_COOKIE"); v != "" {
		w.SessionCookieName = v
	}
	if v := env("METRICS_ADDR"); v != "" {
		w.MetricsAddr = v
	}
	if v := env("PPROF_ADDR"); v != "" {
		w.PprofAddr = v
	}
	if v := env("CERT_FILE"); v != "" {
		w.CertFile = v
	}
	if v := env("KEY_FILE"); v != "" {
		w.KeyFile = v
	}
	if v := env("SHUTDOWN_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sSHUTDOWN_GRACE: %w", EnvPrefix, err)
		}
		w.ShutdownGrace = d
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SSL", &w.SSL},
		{"COOKIE_SECURE", &w.CookieSecure},
		{"BEHIND_PROXY", &w.BehindProxy},
		{"DEBUG", &c.Runtime.Debug},
		{"BACKTRACE", &c.Runtime.Backtrace},
	}
	for _, b := range bools {
		v := env(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, b.key, err)
		}
		*b.dst = parsed
	}
	w.Debug = c.Runtime.Debug
	return nil
}

// Apply sets the process-wide logging state. Call it once, before the web
// server is constructed.
func (r RuntimeConfig) Apply() {
	if r.Debug {
		gin.SetMode(gin.DebugMode)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		gin.SetMode(gin.ReleaseMode)
		log.SetFlags(log.LstdFlags)
	}
	if r.Backtrace {
		debug.SetTraceback("all")
	}
}
