package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dkeye/Estimate/internal/adapters/signal"
	"github.com/dkeye/Estimate/internal/app/orch"
	"github.com/dkeye/Estimate/internal/config"
	"github.com/dkeye/Estimate/internal/domain"
)

const clientTokenCookie = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token, used only to
// correlate its connections in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("EstimateSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		SendBuffer:   cfg.SendBuffer,
		CommandRate:  rate.Limit(cfg.CommandRate),
		CommandBurst: cfg.CommandBurst,
	})

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       len(o.Rooms.List()),
			"connections": o.Connections(),
		})
	})

	api.GET("/templates", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"templates": o.AllTemplates()})
	})

	// GET /api/rooms/:code lets the join form check a code before connecting.
	api.GET("/rooms/:code", func(c *gin.Context) {
		info, ok := o.RoomInfo(domain.RoomCode(c.Param("code")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": domain.ErrRoomNotFound.Message,
				"code":  domain.CodeNotFound,
			})
			return
		}
		sess := sessions.Default(c)
		sess.Set("last_room", string(info.Code))
		if err := sess.Save(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
		}
		c.JSON(http.StatusOK, info)
	})

	api.GET("/rooms/:code/rounds", func(c *gin.Context) {
		rounds, ok := o.RoomRounds(domain.RoomCode(c.Param("code")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": domain.ErrRoomNotFound.Message,
				"code":  domain.CodeNotFound,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rounds": rounds})
	})

	// GET /api/session echoes the browser token and the last room it looked up.
	api.GET("/session", func(c *gin.Context) {
		last, _ := sessions.Default(c).Get("last_room").(string)
		c.JSON(http.StatusOK, gin.H{"clientToken": c.GetString("client_token"), "lastRoom": last})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
