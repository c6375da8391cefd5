package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/auth"
	c "github.com/tradelink-dev/tradelink-go-chat-gateway/internal/config"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/database"
	event2 "github.com/tradelink-dev/tradelink-go-chat-gateway/internal/event"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/hub"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/thread"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin policy is handled by the CORS layer; the handshake is
		// gated on the bearer credential instead
		return true
	},
}

type ServerCloseCallback struct {
	srv *http.Server
}

func (sc *ServerCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Shutting down HTTP server")
	return sc.srv.Shutdown(ctx)
}

func StartServer(port int) {
	config, err := c.GetConfig()
	if err != nil {
		logger.FatalF("Error occured while reading config: %v", err)
		return
	}

	verifier := auth.NewVerifier(os.Getenv("ACCESS_TOKEN_SECRET"))
	resolver := thread.NewResolver(database.NewDatabaseStore(), utils.ParseStringTime(config.Gateway.LookupTimeout))
	router := NewRouter(
		hub.GetHub(),
		database.Gate(),
		resolver,
		database.NewMessageStore(),
		config.Gateway.ReadinessMaxAttempts,
		utils.ParseStringTime(config.Gateway.ReadinessInterval),
	)

	if !config.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.Gateway.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.Gateway.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/health", handleHealth)
	engine.GET("/ws", handleUpgrade(verifier, router))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	event2.NewCleaner().Add(&ServerCloseCallback{srv: srv})

	logger.InfoF("Chat gateway listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.FatalF("Chat gateway start error: %v", err)
	}
}

type healthCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

func handleHealth(c *gin.Context) {
	checks := make(map[string]healthCheck)
	healthy := true

	state := database.Gate().State()
	if state == database.Ready {
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := database.Client.Ping(ctx, nil); err != nil {
			checks["mongodb"] = healthCheck{Status: "fail", Message: "ping failed"}
			healthy = false
		} else {
			checks["mongodb"] = healthCheck{Status: "pass", Latency: time.Since(start).String()}
		}
	} else {
		checks["mongodb"] = healthCheck{Status: "fail", Message: state.String()}
		healthy = false
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUpgrade authenticates the handshake and hands the connection to the
// session router. Invalid credentials refuse the connection before any event
// is processed.
func handleUpgrade(verifier *auth.Verifier, router *Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Authenticate(auth.TokenFromRequest(c.Request))
		if err != nil {
			if errors.Is(err, auth.ErrMisconfigured) {
				logger.ErrorF("Connection refused: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WarnF("Fail to upgrade connection, details: %v", err)
			return
		}

		router.Attach(conn, identity)
	}
}
