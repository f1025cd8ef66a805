package livehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gridbot/internal/logger"
	"gridbot/internal/reconciler"
	"gridbot/internal/store/model"
)

// StatusProvider 由 reconciler 实现，返回当前运行的只读快照。
type StatusProvider interface {
	Status() reconciler.Snapshot
}

// HistoryReader 读取持久化的运行与成交记录。
type HistoryReader interface {
	RecentRuns(ctx context.Context, limit int) ([]model.GridRunModel, error)
	RunFills(ctx context.Context, runID string, limit int) ([]model.GridFillModel, error)
}

// Router 暴露网格运行的查询接口。
type Router struct {
	Status  StatusProvider
	History HistoryReader
}

func NewRouter(status StatusProvider, history HistoryReader) *Router {
	return &Router{Status: status, History: history}
}

// Register 将 /api/live 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/orders", r.handleOrders)
	if r.History != nil {
		group.GET("/runs", r.handleRuns)
		group.GET("/runs/:id/fills", r.handleRunFills)
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.Status.Status())
}

func (r *Router) handleOrders(c *gin.Context) {
	snap := r.Status.Status()
	side := strings.ToLower(strings.TrimSpace(c.Query("side")))
	orders := make([]reconciler.TrackedOrder, 0, len(snap.Tracked))
	for _, o := range snap.Tracked {
		if side != "" && o.Side != side {
			continue
		}
		orders = append(orders, o)
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": snap.Symbol,
		"state":  snap.State,
		"orders": orders,
		"count":  len(orders),
	})
}

// runView 将 RunStatus 与统计 JSON 展开为前端友好的结构。
type runView struct {
	RunID       string          `json:"run_id"`
	Symbol      string          `json:"symbol"`
	Mode        string          `json:"mode"`
	GridCount   int             `json:"grid_count"`
	Lower       float64         `json:"lower"`
	Upper       float64         `json:"upper"`
	InitialCash float64         `json:"initial_cash"`
	Leverage    float64         `json:"leverage"`
	DryRun      bool            `json:"dry_run"`
	Status      string          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

func toRunView(m model.GridRunModel) runView {
	v := runView{
		RunID:       m.RunID,
		Symbol:      m.Symbol,
		Mode:        m.Mode,
		GridCount:   m.GridCount,
		Lower:       m.Lower,
		Upper:       m.Upper,
		InitialCash: m.InitialCash,
		Leverage:    m.Leverage,
		DryRun:      m.DryRun,
		Status:      m.Status.String(),
		Reason:      m.Reason,
		StartedAt:   time.UnixMilli(m.StartedAtUnix).UTC(),
	}
	if len(m.StatsJSON) > 0 {
		v.Stats = json.RawMessage(m.StatsJSON)
	}
	if m.EndedAtUnix > 0 {
		t := time.UnixMilli(m.EndedAtUnix).UTC()
		v.EndedAt = &t
	}
	return v
}

func (r *Router) handleRuns(c *gin.Context) {
	limit := parseLimit(c, 20, 200)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	runs, err := r.History.RecentRuns(ctx, limit)
	if err != nil {
		logger.Errorf("[api] list runs failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]runView, 0, len(runs))
	for _, m := range runs {
		views = append(views, toRunView(m))
	}
	c.JSON(http.StatusOK, gin.H{"runs": views, "count": len(views)})
}

func (r *Router) handleRunFills(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("id"))
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	limit := parseLimit(c, 500, 5000)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	fills, err := r.History.RunFills(ctx, runID, limit)
	if err != nil {
		logger.Errorf("[api] list fills failed ip=%s run=%s err=%v", c.ClientIP(), runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "fills": fills, "count": len(fills)})
}

func parseLimit(c *gin.Context, def, ceiling int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", strconv.Itoa(def))))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
