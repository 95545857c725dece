package api

import (
	"go.uber.org/zap"

	"mssp-monitor/internal/config"
	"mssp-monitor/internal/model"
)

// MonitorController is the slice of the supervisor the ops API drives.
type MonitorController interface {
	TriggerNow()
	LastResult() *model.CycleResult
}

type API struct {
	Monitor MonitorController
	Cfg     *config.Config
	Logger  *zap.Logger
}

func NewAPI(m MonitorController, cfg *config.Config, logger *zap.Logger) *API {
	return &API{
		Monitor: m,
		Cfg:     cfg,
		Logger:  logger,
	}
}
