package handler

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rescuelog/backend/internal/model"
)

// 헬스체크 엔드포인트
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "RescueLog API server is running",
	})
}

// Pinger는 readiness 체크 대상 (db.Postgres)
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health는 readiness 상태를 들고 있음. 종료 시작 시 SetReady(false)
type Health struct {
	ready atomic.Bool
	db    Pinger
}

func NewHealth(initialReady bool, db Pinger) *Health {
	h := &Health{db: db}
	h.ready.Store(initialReady)
	return h
}

func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Health) IsReady() bool {
	return h.ready.Load()
}

// Liveness godoc
// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Router /healthz [get]
func (h *Health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Readiness godoc
// @Summary Readiness probe
// @Description Not ready while shutting down or when the database does not answer.
// @Tags ops
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 503 {object} model.StatusResponse
// @Router /readyz [get]
func (h *Health) Readiness(c *gin.Context) {
	if !h.IsReady() {
		c.JSON(http.StatusServiceUnavailable, model.StatusResponse{Status: "not_ready"})
		return
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, model.StatusResponse{Status: "db_unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ready"})
}
