// Package web provides the HTTP server for go-homepage
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-homepage/internal/config"
)

// ErrServerClosed is returned by Start and Serve after Shutdown.
var ErrServerClosed = http.ErrServerClosed

// trustedProxies are the peers whose X-Forwarded-* headers are honored
// when BehindProxy is set.
var trustedProxies = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// WebServer represents the web server
type WebServer struct {
	Router    *gin.Engine
	Config    *config.WebConfig
	Routes    RouteTable
	Metrics   *Metrics
	StartTime time.Time // Track server start time for uptime calculations

	static fs.FS
	root   *os.Root // nil when static was supplied by the caller

	mu     sync.Mutex
	srv    *http.Server
	addr   net.Addr
	closed bool
}

// Option customizes a WebServer during NewServer.
type Option func(*WebServer)

// WithStaticFS serves pages from fsys instead of opening WebConfig.StaticDir.
func WithStaticFS(fsys fs.FS) Option {
	return func(s *WebServer) {
		s.static = fsys
	}
}

// WithMetrics records request metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *WebServer) {
		s.Metrics = m
	}
}

// WithRouteTable replaces the default page table.
func WithRouteTable(rt RouteTable) Option {
	return func(s *WebServer) {
		s.Routes = rt
	}
}

// NewServer creates a new web server instance. The returned engine is fully
// wired and is not modified afterwards; all connections share it.
func NewServer(webconfig *config.WebConfig, opts ...Option) (*WebServer, error) {
	if webconfig == nil {
		return nil, errors.New("web: nil config")
	}

	server := &WebServer{
		Config: webconfig,
		Routes: DefaultRouteTable(),
	}
	for _, opt := range opts {
		opt(server)
	}

	if server.static == nil {
		root, err := os.OpenRoot(webconfig.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("open static dir %q: %w", webconfig.StaticDir, err)
		}
		server.root = root
		server.static = root.FS()
	}

	sessionMW, err := SessionMiddleware(webconfig)
	if err != nil {
		server.closeRoot()
		return nil, err
	}

	router := gin.New()
	router.HandleMethodNotAllowed = false
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	// ClientIP only follows forwarding headers from trusted proxies
	var proxies []string
	if webconfig.BehindProxy {
		proxies = trustedProxies
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		server.closeRoot()
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	// Configure security headers based on SSL setup
	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if webconfig.SSL {
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}

	router.Use(gin.Recovery())
	if webconfig.BehindProxy {
		router.Use(server.ReverseProxyMiddleware())
	}
	router.Use(RequestIDMiddleware())
	router.Use(server.ApacheLogFormat())
	router.Use(secure.New(secureConfig))
	router.Use(TracingMiddleware())
	if server.Metrics != nil {
		router.Use(server.Metrics.Middleware())
	}
	router.Use(sessionMW)

	server.Router = router
	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	for _, page := range s.Routes.Pages() {
		s.Router.GET(page.Path, ServePage(s.static, page))
	}
	s.Router.NoRoute(FallbackHandler(s.static, s.Routes.NotFound))
}

// Preflight checks that every page file of the route table exists and logs
// its size. Missing files only produce a warning; those routes answer 404.
func (s *WebServer) Preflight() (missing []string) {
	p := sizePrinter()
	check := func(route, name string) {
		info, err := fs.Stat(s.static, name)
		if err != nil {
			log.Printf("[WEB]: WARNING: %s -> %s: %v", route, name, err)
			missing = append(missing, name)
			return
		}
		log.Print(p.Sprintf("[WEB]: %s -> %s (%d bytes)", route, name, info.Size()))
	}
	for _, page := range s.Routes.Pages() {
		check(page.Path, page.File)
	}
	check("<fallback>", s.Routes.NotFound)
	return missing
}

// Start binds the configured address and serves until Shutdown. A bind
// failure is returned immediately.
func (s *WebServer) Start() error {
	ln, err := net.Listen("tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("can not bind to %s: %w", s.Config.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *WebServer) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.srv != nil {
		s.mu.Unlock()
		ln.Close()
		return errors.New("web: server already started")
	}
	s.srv = srv
	s.addr = ln.Addr()
	s.StartTime = time.Now()
	s.mu.Unlock()

	if s.Config.SSL {
		if s.Config.CertFile == "" || s.Config.KeyFile == "" {
			ln.Close()
			return errors.New("SSL enabled but cert_file or key_file not specified in config")
		}
		log.Printf("[WEB]: Starting HTTPS server on %s", ln.Addr())
		return srv.ServeTLS(ln, s.Config.CertFile, s.Config.KeyFile)
	}
	log.Printf("[WEB]: Starting HTTP server on %s", ln.Addr())
	return srv.Serve(ln)
}

// Addr returns the bound listener address, or nil before Serve.
func (s *WebServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown stops the server. With a zero grace period every open
// connection is closed at once; otherwise in-flight requests may drain
// until the grace period or ctx ends, whichever is first.
func (s *WebServer) Shutdown(ctx context.Context) error {
	defer s.closeRoot()

	s.mu.Lock()
	srv := s.srv
	s.closed = true
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	grace := s.Config.ShutdownGrace
	if grace <= 0 {
		log.Printf("[WEB]: Shutdown grace is 0s, closing all connections")
		return srv.Close()
	}

	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[WEB]: Graceful shutdown interrupted: %v", err)
		return srv.Close()
	}
	return nil
}

func (s *WebServer) closeRoot() {
	if s.root != nil {
		s.root.Close()
		s.root = nil
	}
}

// ReverseProxyMiddleware restores the original scheme and host from
// X-Forwarded-Proto and X-Forwarded-Host when the peer is a trusted proxy.
// The client address itself is resolved by gin's ClientIP.
func (s *WebServer) ReverseProxyMiddleware() gin.HandlerFunc {
	prefixes := make([]netip.Prefix, 0, len(trustedProxies))
	for _, cidr := range trustedProxies {
		prefixes = append(prefixes, netip.MustParsePrefix(cidr))
	}
	trusted := func(remoteIP string) bool {
		addr, err := netip.ParseAddr(remoteIP)
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		if !trusted(c.RemoteIP()) {
			c.Next()
			return
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" {
			c.Request.URL.Scheme = "https"
		}
		if host := c.GetHeader("X-Forwarded-Host"); host != "" {
			c.Request.Host = host
		}
		c.Next()
	}
}

// ApacheLogFormat is the access log: one combined-format line per request
// followed by latency and request id.
func (s *WebServer) ApacheLogFormat() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		requestID, _ := param.Keys[requestIDKey].(string)
		line := fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s" %s %s`,
			param.ClientIP,
			param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.BodySize,
			param.Request.Referer(),
			param.Request.UserAgent(),
			param.Latency,
			requestID,
		)
		if param.ErrorMessage != "" {
			line += " err=" + strings.TrimSpace(param.ErrorMessage)
		}
		return line + "\n"
	})
}
