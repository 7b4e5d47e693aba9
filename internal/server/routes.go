package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/reguctl/internal/auth"
	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/observability"
	"github.com/danmuck/reguctl/internal/regulator"
)

const apiVersion = "0.1.0"

// adminRouter builds the ops API. Health, readiness and metrics stay
// open; everything else sits behind the bearer token when one is
// configured.
func (s *Service) adminRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"regulator": s.cfg.Name,
			"uptime":    time.Since(s.started).String(),
			"version":   apiVersion,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":     true,
			"regulator": s.cfg.Name,
			"session":   s.currentSession() != nil,
			"uptime":    time.Since(s.started).String(),
			"version":   apiVersion,
		})
	})

	api := r.Group("/")
	if s.cfg.AdminToken != "" {
		api.Use(s.requireToken())
	}
	s.registerAdminRoutes(api)
	return r
}

func (s *Service) registerAdminRoutes(api gin.IRoutes) {
	api.GET("/status", func(c *gin.Context) {
		snap := s.state.Snapshot()
		sess := s.currentSession()
		session := gin.H{"connected": sess != nil}
		if sess != nil {
			session["id"] = sess.id
		}
		c.JSON(http.StatusOK, gin.H{
			"regulator":      snap.Name,
			"mode":           snap.Mode.String(),
			"representation": snap.Representation.String(),
			"plan": gin.H{
				"internal": snap.PlanID,
				"external": snap.PlanExternal(),
			},
			"phase": snap.Phase,
			"cycle": gin.H{
				"elapsed": snap.CycleElapsed,
				"length":  snap.CycleLength,
			},
			"in_transition": snap.InTransition,
			"startup_stage": snap.StartupStage,
			"alarms": gin.H{
				"lamp":     snap.LampAlarm,
				"conflict": snap.ConflictAlarm,
			},
			"session": session,
			"at":      snap.At,
		})
	})

	api.GET("/groups", func(c *gin.Context) {
		snap := s.state.Snapshot()
		groups := make([]gin.H, 0, len(snap.Groups))
		for i, g := range snap.Groups {
			color := snap.GroupColors[i]
			groups = append(groups, gin.H{
				"id":        g.ID,
				"kind":      g.Kind,
				"label":     g.Label,
				"color":     color.String(),
				"displayed": displayedColor(color, snap.BlinkOn),
			})
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
	})

	api.GET("/plans", func(c *gin.Context) {
		snap := s.state.Snapshot()
		plans := make([]gin.H, 0, len(s.inst.Plans))
		for _, p := range s.inst.Plans {
			plans = append(plans, gin.H{
				"internal":  p.ID,
				"external":  p.External(),
				"structure": p.Structure,
				"cycle":     p.Cycle,
				"starts":    p.Starts,
				"active":    p.ID == snap.PlanID,
			})
		}
		c.JSON(http.StatusOK, gin.H{"plans": plans})
	})

	api.GET("/events", func(c *gin.Context) {
		if s.jrnl == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), journalTimeout)
		defer cancel()
		entries, err := s.jrnl.Recent(ctx, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": entries})
	})

	api.POST("/plan", func(c *gin.Context) {
		var req struct {
			ExternalID *int `json:"external_id"`
			InternalID *int `json:"internal_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var internal int
		switch {
		case req.InternalID != nil:
			internal = *req.InternalID
		case req.ExternalID != nil:
			internal = *req.ExternalID + 128
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "external_id or internal_id required"})
			return
		}
		if err := s.state.SelectPlan(internal); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, regulator.ErrUnknownPlan) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"plan": gin.H{
				"internal": internal,
				"external": internal - 128,
			},
		})
	})

	api.POST("/mode", func(c *gin.Context) {
		var req struct {
			Mode           string `json:"mode"`
			Representation string `json:"representation"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Mode == "" && req.Representation == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode or representation required"})
			return
		}
		snap := s.state.Snapshot()
		mode, repr := snap.Mode, snap.Representation
		if req.Mode != "" {
			m, err := regulator.ParseMode(req.Mode)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			mode = m
		}
		if req.Representation != "" {
			r, err := regulator.ParseRepresentation(req.Representation)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			repr = r
		}
		s.state.SetStates(repr, mode)
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"mode":           mode.String(),
			"representation": repr.String(),
		})
	})

	api.POST("/alarms", func(c *gin.Context) {
		var req struct {
			Lamp     bool `json:"lamp"`
			Conflict bool `json:"conflict"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.state.SetAlarms(req.Lamp, req.Conflict)
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"lamp":     req.Lamp,
			"conflict": req.Conflict,
		})
	})

	api.POST("/detectors/:id/pulse", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detector id"})
			return
		}
		if err := s.state.PulseDetector(id); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, regulator.ErrUnknownDetector) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "detector": id})
	})
}

// requireToken guards the admin routes with the configured bearer token.
func (s *Service) requireToken() gin.HandlerFunc {
	validator := auth.StaticToken{Token: s.cfg.AdminToken}
	return func(c *gin.Context) {
		token, err := auth.ParseBearer(c.GetHeader("Authorization"))
		if err == nil {
			err = validator.Validate(token)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// serveAdmin runs the ops API until ctx is cancelled.
func (s *Service) serveAdmin(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.AdminAddr, Handler: s.adminRouter()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// displayedColor is the lamp as an observer sees it right now: a
// blinking lamp alternates between its base color and dark with the
// shared blink clock.
func displayedColor(c config.Color, blinkOn bool) string {
	if c.Blinking() && !blinkOn {
		return config.ColorOff.String()
	}
	return c.Base().String()
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
