package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/go-while/go-homepage/internal/config"
	"github.com/go-while/go-homepage/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// serveFlags mirrors the command-line flags; only flags the user actually
// set override the defaults, .env and HOMEPAGE_* environment.
type serveFlags struct {
	envFile       string
	host          string
	port          int
	staticDir     string
	ssl           bool
	certFile      string
	keyFile       string
	sessionSecret string
	cookieSecure  bool
	shutdownGrace time.Duration
	behindProxy   bool
	metricsAddr   string
	pprofAddr     string
	debug         bool
	backtrace     bool
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mainConfig, err := loadConfig(cmd.Flags(), &f)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), mainConfig)
		},
	}

	f.register(cmd.Flags())

	return cmd
}

// register defines the serve flags on fl, bound to f.
func (f *serveFlags) register(fl *pflag.FlagSet) {
	defaults := config.NewDefaultConfig()
	fl.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading HOMEPAGE_* variables")
	fl.StringVar(&f.host, "host", defaults.Web.ListenHost, "listen address")
	fl.IntVar(&f.port, "webport", defaults.Web.ListenPort, "web server port")
	fl.StringVar(&f.staticDir, "static", defaults.Web.StaticDir, "static directory holding the pages")
	fl.BoolVar(&f.ssl, "webssl", false, "enable SSL")
	fl.StringVar(&f.certFile, "websslcert", "", "SSL certificate file (/path/to/fullchain.pem)")
	fl.StringVar(&f.keyFile, "websslkey", "", "SSL key file (/path/to/privkey.pem)")
	fl.StringVar(&f.sessionSecret, "session-secret", "", "session signing secret, at least 32 bytes (prefer HOMEPAGE_SESSION_SECRET)")
	fl.BoolVar(&f.cookieSecure, "cookie-secure", false, "mark the session cookie Secure")
	fl.DurationVar(&f.shutdownGrace, "shutdown-grace", defaults.Web.ShutdownGrace, "time in-flight requests may drain on shutdown (0 closes at once)")
	fl.BoolVar(&f.behindProxy, "behind-proxy", false, "trust X-Forwarded-* headers from a reverse proxy")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus /metrics on this address (disabled when empty)")
	fl.StringVar(&f.pprofAddr, "pprof-addr", "", "serve pprof on this address (disabled when empty)")
	fl.BoolVar(&f.debug, "debug", defaults.Runtime.Debug, "debug logging")
	fl.BoolVar(&f.backtrace, "backtrace", defaults.Runtime.Backtrace, "print all goroutine stacks on fatal errors")
}

// loadConfig layers defaults, the dotenv file, HOMEPAGE_* variables and
// explicitly set flags, in that order.
func loadConfig(fl *pflag.FlagSet, f *serveFlags) (*config.MainConfig, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return nil, err
	}
	mainConfig := config.NewDefaultConfig()
	if err := mainConfig.LoadEnv(os.Getenv); err != nil {
		return nil, err
	}

	w := mainConfig.Web
	overrides := map[string]func(){
		"host":           func() { w.ListenHost = f.host },
		"webport":        func() { w.ListenPort = f.port },
		"static":         func() { w.StaticDir = f.staticDir },
		"webssl":         func() { w.SSL = f.ssl },
		"websslcert":     func() { w.CertFile = f.certFile },
		"websslkey":      func() { w.KeyFile = f.keyFile },
		"session-secret": func() { w.SessionSecret = f.sessionSecret },
		"cookie-secure":  func() { w.CookieSecure = f.cookieSecure },
		"shutdown-grace": func() { w.ShutdownGrace = f.shutdownGrace },
		"behind-proxy":   func() { w.BehindProxy = f.behindProxy },
		"metrics-addr":   func() { w.MetricsAddr = f.metricsAddr },
		"pprof-addr":     func() { w.PprofAddr = f.pprofAddr },
		"debug":          func() { mainConfig.Runtime.Debug = f.debug },
		"backtrace":      func() { mainConfig.Runtime.Backtrace = f.backtrace },
	}
	fl.Visit(func(flag *pflag.Flag) {
		if apply, ok := overrides[flag.Name]; ok {
			apply()
		}
	})
	w.Debug = mainConfig.Runtime.Debug
	return mainConfig, nil
}

func runServer(ctx context.Context, mainConfig *config.MainConfig) error {
	// process-wide logging state, set once before anything is served
	mainConfig.Runtime.Apply()
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		gin.DisableConsoleColor()
	}

	webConfig := mainConfig.Web
	log.Printf("[WEB]: Starting go-homepage Web Server (version: %s)", config.AppVersion)
	if err := webConfig.EnsureSessionSecret(); err != nil {
		return err
	}
	if err := webConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Printf("[WEB]: Using static dir %q, shutdown grace %s, debug=%t", webConfig.StaticDir, webConfig.ShutdownGrace, webConfig.Debug)

	var opts []web.Option
	var metricsServer *http.Server
	if webConfig.MetricsAddr != "" {
		metrics := web.NewMetrics()
		opts = append(opts, web.WithMetrics(metrics))
		metricsServer = web.NewMetricsServer(webConfig.MetricsAddr, metrics)
		go func() {
			log.Printf("[METRICS]: Serving /metrics on %s", webConfig.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[METRICS]: Error: %v", err)
			}
		}()
	}

	if webConfig.PprofAddr != "" {
		profiler := prof.NewProf()
		go profiler.PprofWeb(webConfig.PprofAddr)
		log.Printf("[PPROF]: Serving pprof on %s", webConfig.PprofAddr)
	}

	server, err := web.NewServer(webConfig, opts...)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}
	server.Preflight()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	webServerErrChan := make(chan error, 1)
	go func() {
		webServerErrChan <- server.Start()
	}()
	log.Printf("[WEB]: Listening on http://%s. Press Ctrl+C to stop...", webConfig.Addr())

	select {
	case err := <-webServerErrChan:
		if metricsServer != nil {
			metricsServer.Close()
		}
		return fmt.Errorf("failed to start web server: %w", err)
	case <-ctx.Done():
		log.Printf("[WEB]: Received shutdown signal")
	}

	if metricsServer != nil {
		metricsServer.Close()
	}
	if err := server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-webServerErrChan; err != nil && !errors.Is(err, web.ErrServerClosed) {
		return err
	}
	log.Printf("[WEB]: Shutdown completed")
	return nil
}
