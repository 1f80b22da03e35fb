// Package http wires the gin router: noise-box creation, stats, flash
// messages and the websocket endpoint. Page rendering stays on the
// client; the server serves static files and JSON.
package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/adapters/ws"
	"github.com/GuntLondon/noise-box/internal/config"
	"github.com/GuntLondon/noise-box/internal/core"
	"github.com/GuntLondon/noise-box/internal/domain"
)

// ClientTokenMiddleware mints a long-lived browser token. It names the
// client, not the connection: websocket connection ids are minted per
// upgrade.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *core.Registry, ctl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("NoiseBoxSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := handlers{reg: reg}

	api := r.Group("/api")
	api.POST("/host", h.createNoiseBox)
	api.GET("/host/:id", h.noiseBoxStatus)
	api.GET("/box/:id", h.noiseBoxStatus)
	api.GET("/stats", h.stats)
	api.GET("/flash", h.popFlash)

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.Handle(ctx, c)
	})

	return r
}

type handlers struct {
	reg *core.Registry
}

type createNoiseBoxRequest struct {
	ID string `json:"id" binding:"required,alphanum,max=20"`
}

// createNoiseBox validates the name, creates the box and reports the
// host/user entry points. Failures also land a flash message on the
// session, matching the old redirect-with-flash flow.
func (h handlers) createNoiseBox(c *gin.Context) {
	var req createNoiseBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.IsValidNoiseBoxID(req.ID) {
		flash(c, "That isn't a valid NoiseBox name. The name must be 20 characters or less and consist only of letters and numbers with no spaces.")
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidNoiseBoxID.Error()})
		return
	}

	nb, err := h.reg.AddNoiseBox(domain.NoiseBoxID(req.ID))
	if err != nil {
		flash(c, "Unable to create that NoiseBox, try a different name ...")
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrDuplicateNoiseBox.Error()})
		return
	}

	log.Info().Str("module", "adapters.http").Str("box", string(nb.ID())).Msg("created noise-box")
	c.JSON(http.StatusCreated, gin.H{
		"id":       nb.ID(),
		"host_url": "/host/" + string(nb.ID()),
		"user_url": "/" + string(nb.ID()),
	})
}

func (h handlers) noiseBoxStatus(c *gin.Context) {
	id := domain.NoiseBoxID(c.Param("id"))
	nb, ok := h.reg.GetNoiseBox(id)
	if !ok {
		flash(c, "NoiseBox \""+string(id)+"\" does not exist.")
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     nb.ID(),
		"hosts":  nb.HostCount(),
		"users":  nb.UserCount(),
		"tracks": nb.Tracks(),
	})
}

func (h handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.Stats())
}

// popFlash returns and clears the pending flash message, if any.
func (h handlers) popFlash(c *gin.Context) {
	s := sessions.Default(c)
	msg, _ := s.Get("flash").(string)
	if msg != "" {
		s.Delete("flash")
		_ = s.Save()
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func flash(c *gin.Context, msg string) {
	s := sessions.Default(c)
	s.Set("flash", msg)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save flash")
	}
}
