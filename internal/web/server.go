// Package web gin server
package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/lovewall/love-wall/internal/web/frontend"
	"github.com/lovewall/love-wall/internal/web/notes/controller"
	"github.com/lovewall/love-wall/library/log"
)

const shutdownTimeout = 10 * time.Second

// Options wires the HTTP server.
type Options struct {
	Notes *controller.Notes
	Site  SiteConfig
	// CORSAllowedHosts lists origins allowed cross-site access,
	// each entry also admits its subdomains.
	CORSAllowedHosts []string
	Logger           logSDK.Logger
}

// NewServer builds the gin engine serving the API and the client.
func NewServer(opt Options) (*gin.Engine, error) {
	if opt.Notes == nil {
		return nil, errors.New("notes controller is required")
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.Logger.Named("web")
	}

	server := gin.New()
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logger.Level().String()),
			gmw.WithLogger(logger.Named("gin")),
		),
		allowCORS(normalizeHostList(opt.CORSAllowedHosts)),
	)

	if err := gmw.EnableMetric(server); err != nil {
		return nil, errors.Wrap(err, "enable metric server")
	}

	status := newStatusHandler()
	server.GET("/health", status)
	server.HEAD("/health", status)
	server.OPTIONS("/health", status)

	server.GET("/api/site-config", newSiteConfigHandler(opt.Site))
	opt.Notes.RegisterRoutes(server)

	spa, err := newFrontendSPAHandler(logger.Named("frontend"), frontend.Assets())
	if err != nil {
		return nil, errors.Wrap(err, "load frontend")
	}
	server.NoRoute(gin.WrapH(spa))

	return server, nil
}

// RunServer serves handler on addr until ctx is done, then shuts down gracefully.
func RunServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info("listening on http", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}

	log.Logger.Info("http server stopped", zap.String("addr", addr))
	return nil
}

func newStatusHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Allow", "GET, HEAD, OPTIONS")
		if ctx.Request.Method != http.MethodGet {
			ctx.Status(http.StatusOK)
			return
		}
		ctx.String(http.StatusOK, "ok")
	}
}

// hostAllowed reports whether host equals, or is a subdomain of, an allowed entry.
func hostAllowed(host string, allowed []string) bool {
	for _, entry := range allowed {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func allowCORS(allowed []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := strings.TrimSpace(ctx.Request.Header.Get("Origin"))
		allowedOrigin := ""

		if origin != "" {
			parsedOriginURL, err := url.Parse(origin)
			if err == nil && parsedOriginURL.Host != "" {
				host := strings.ToLower(parsedOriginURL.Hostname())
				if hostAllowed(host, allowed) {
					allowedOrigin = origin
				}
			}
		}

		if allowedOrigin != "" {
			ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS, HEAD")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Requested-With")
			ctx.Header("Access-Control-Max-Age", "86400") // 24 hours
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			// deny preflight from origins not in the allow list
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}
