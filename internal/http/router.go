// Package httpapi wires the Gin transport to the assistant's services,
// middleware and route handlers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/shopping-assistant/docs"
	"github.com/tbourn/shopping-assistant/internal/config"
	"github.com/tbourn/shopping-assistant/internal/http/handlers"
	"github.com/tbourn/shopping-assistant/internal/http/middleware"
	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/shopping"
)

// App bundles the services the routes are built on. DB holds idempotency
// records; when nil, Idempotency-Key replay is disabled. Details and
// Research are optional.
type App struct {
	DB           *gorm.DB
	Orchestrator *services.Orchestrator
	Sessions     *services.Sessions
	Details      shopping.DetailFetcher
	Research     handlers.ProductResearcher
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID, then Identity (X-User-ID)
//  3. RedactingLogger, then Recovery
//  4. Body size limit, Metrics, gzip
//  5. Idempotency validator (before the limiter so replays bypass it)
//  6. Rate limiter per user/IP
//  7. CORS and security headers
func RegisterRoutes(r *gin.Engine, app App, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
		SkipPaths:   []string{"/health", "/metrics"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(app.DB, app.Sessions),
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), "/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	base := cfg.APIBasePath
	if base == "/" {
		base = ""
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{base + "/session", base + "/threads"},
		EnablePolicy:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Queries:  app.Orchestrator,
		Sessions: app.Sessions,
		Details:  app.Details,
		Research: app.Research,
		IdemDB:   app.DB,
		IdemTTL:  cfg.IdempotencyTTL,
	})

	// Stateless endpoints the storefront calls directly.
	r.POST("/processQuery", h.ProcessQuery)
	r.POST("/productDetails", h.ProductDetails)
	r.POST("/productResearch", h.ProductResearch)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/threads", h.ListThreads)
		api.POST("/threads", h.CreateThread)
		api.DELETE("/threads/:id", h.DeleteThread)
		api.POST("/threads/:id/switch", h.SwitchThread)
		api.GET("/threads/:id/messages", h.ListMessages)

		api.GET("/session", h.GetSession)
		api.POST("/session/messages", h.SubmitMessage)
		api.POST("/session/retry", h.RetrySession)
		api.POST("/session/clear", h.ClearSession)
		api.DELETE("/session/error", h.DismissError)
	}
}

// idempotencyLookup reports whether key was already used by the user on
// their active thread.
func idempotencyLookup(db *gorm.DB, sessions *services.Sessions) middleware.IdempotencyLookup {
	if db == nil || sessions == nil {
		return nil
	}
	return func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
		ctl, err := sessions.Get(ctx, userID)
		if err != nil {
			return false, err
		}
		th, ok := ctl.Store().ActiveThread()
		if !ok {
			return false, nil
		}
		_, err = repo.GetIdempotency(ctx, db, userID, th.ID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"}
)

// corsMiddleware allows every origin when none are configured, otherwise it
// echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, so plain curl and health checkers see it.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    corsMethods,
				AllowHeaders:    corsHeaders,
				ExposeHeaders:   corsExpose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  corsMethods,
			AllowHeaders:  corsHeaders,
			ExposeHeaders: corsExpose,
			MaxAge:        12 * time.Hour,
		}),
	}
}

// limitBody caps request bodies at maxBytes; a non-positive value disables the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
