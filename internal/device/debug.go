package device

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/observability"
)

// DebugServer is the optional HTTP surface for operators: health, lifecycle
// state, turret position, and prometheus metrics. The video path stays on
// the raw TCP port.
type DebugServer struct {
	srv *http.Server
	log zerolog.Logger
}

func StartDebugServer(addr string, d *Device, log zerolog.Logger) *DebugServer {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	startedAt := time.Now()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(startedAt).String(),
			"name":   d.cfg.Name,
		})
	})

	r.GET("/status", func(c *gin.Context) {
		state := d.State()
		turret := d.Turret().State()
		body := gin.H{
			"state": state.String(),
			"turret": gin.H{
				"pan":     turret.Pan,
				"tilt":    turret.Tilt,
				"enabled": turret.Enabled,
			},
		}
		if reason := d.SessionReason(); reason != nil {
			body["session_ended"] = reason.Error()
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{Addr: addr, Handler: r}
	ds := &DebugServer{srv: srv, log: log}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("debug server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("debug server listening")
	return ds
}

func (s *DebugServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
