package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"udaay-be/controllers"
	"udaay-be/middlewares"
)

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

type Options struct {
	JWTSecret       string
	ClientURL       string
	Redis           *redis.Client
	RateLimitPrefix string
	DailyLimit      int
	Health          map[string]HealthCheck
}

// NewRouter builds the engine with CORS, logging and every route group.
func NewRouter(ic *controllers.IssueController, nc *controllers.NotificationController, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger())
	r.Use(cors.New(corsConfig(opts.ClientURL)))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", healthHandler(opts.Health))

	IssueRoutes(r, ic, opts)
	NotificationRoutes(r, nc, opts)
	return r
}

func corsConfig(clientURL string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	var origins []string
	for _, o := range strings.Split(clientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	cfg.AllowOrigins = origins
	return cfg
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		components := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}
		c.JSON(status, gin.H{"success": status == http.StatusOK, "data": components})
	}
}
