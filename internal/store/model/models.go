package model

import (
	"gorm.io/datatypes"
)

type RunStatus int

const (
	RunStatusUnknown RunStatus = 0
	RunStatusRunning RunStatus = 1
	RunStatusStopped RunStatus = 2
	RunStatusFailed  RunStatus = 3
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusRunning:
		return "running"
	case RunStatusStopped:
		return "stopped"
	case RunStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// GridRunModel 记录一次网格运行的参数、结束原因与最终统计。
type GridRunModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;uniqueIndex"`
	Symbol        string         `gorm:"column:symbol;index"`
	Mode          string         `gorm:"column:mode"`
	GridCount     int            `gorm:"column:grid_count"`
	Lower         float64        `gorm:"column:lower"`
	Upper         float64        `gorm:"column:upper"`
	InitialCash   float64        `gorm:"column:initial_cash"`
	Leverage      float64        `gorm:"column:leverage"`
	DryRun        bool           `gorm:"column:dry_run"`
	Status        RunStatus      `gorm:"column:status"`
	Reason        string         `gorm:"column:reason"`
	StatsJSON     datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	StartedAtUnix int64          `gorm:"column:started_at"`
	EndedAtUnix   int64          `gorm:"column:ended_at"`
}

func (GridRunModel) TableName() string { return "grid_runs" }

// GridFillModel 记录一次成交；RawJSON 保存成交时的订单快照。
type GridFillModel struct {
	ID              int64          `gorm:"column:id;primaryKey" json:"id"`
	RunID           string         `gorm:"column:run_id;index" json:"run_id"`
	Symbol          string         `gorm:"column:symbol" json:"symbol"`
	GridIndex       int            `gorm:"column:grid_index" json:"grid_index"`
	Side            string         `gorm:"column:side" json:"side"`
	OrderID         string         `gorm:"column:order_id" json:"order_id"`
	Price           float64        `gorm:"column:price" json:"price"`
	FillPrice       float64        `gorm:"column:fill_price" json:"fill_price"`
	Size            float64        `gorm:"column:size" json:"size"`
	Fee             float64        `gorm:"column:fee" json:"fee"`
	PairedGridIndex int            `gorm:"column:paired_grid_index" json:"paired_grid_index"`
	RawJSON         datatypes.JSON `gorm:"column:raw_json;type:TEXT" json:"order,omitempty"`
	FilledAtUnix    int64          `gorm:"column:filled_at" json:"filled_at_ms"`
}

func (GridFillModel) TableName() string { return "grid_fills" }
