// Package http wires the REST surface and the signaling socket endpoint.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/adapters/signal"
	"github.com/talkrooms/talkrooms/internal/auth"
	"github.com/talkrooms/talkrooms/internal/config"
	"github.com/talkrooms/talkrooms/internal/domain"
	"github.com/talkrooms/talkrooms/internal/store"
)

const userIDKey = "user_id"

// AuthMiddleware verifies the access-token cookie and stashes the user id.
func AuthMiddleware(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := c.Cookie(auth.CookieName)
		if err != nil || tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		uid, err := tokens.Verify(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.UserID {
	v, _ := c.Get(userIDKey)
	uid, _ := v.(domain.UserID)
	return uid
}

func SetupRouter(ctx context.Context, cfg *config.Config, st *store.Store, tokens *auth.Tokens, ws *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.Use(newIPRateLimiter(100, 5*time.Minute).
		middleware("Too many requests, please try again later."))
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{store: st, tokens: tokens, cfg: cfg}

	// Login gets a stricter limit than the rest of the API: five attempts
	// per minute per IP.
	loginLimiter := newIPRateLimiter(5, time.Minute)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", loginLimiter.middleware("Too many login attempts, please try again later."), h.login)
	authGroup.POST("/logout", h.logout)
	authGroup.GET("/me", AuthMiddleware(tokens), h.me)

	rooms := api.Group("/rooms", AuthMiddleware(tokens))
	rooms.POST("", h.createRoom)
	rooms.GET("", h.myRooms)
	rooms.GET("/:code", h.roomByCode)
	rooms.GET("/:code/messages", h.roomMessages)
	// Mutations address rooms by id, but share the wildcard name because
	// gin requires one name per segment position.
	rooms.PATCH("/:code", h.renameRoom)
	rooms.DELETE("/:code", h.deleteRoom)

	api.GET("/webrtc/config", AuthMiddleware(tokens), h.webrtcConfig)

	// Live broadcast channels with subscriber counts, for operators.
	api.GET("/debug/rooms", AuthMiddleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": ws.Coord.Rooms.List()})
	})

	api.GET("/ws", func(c *gin.Context) {
		ws.HandleSignal(ctx, c)
	})

	return r
}
