package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/api/middleware"
)

// RegisterDeviceRoutes 挂载 /api/v1/device；写操作受 apiKeys 保护
func RegisterDeviceRoutes(r *gin.Engine, handler *DeviceHandler, apiKeys []string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := r.Group("/api/v1/device", middleware.RequestID(), middleware.AccessLog(logger))

	g.GET("", handler.GetInfo)
	g.GET("/measurements", handler.GetMeasurements)
	g.GET("/electrical/:param", handler.GetElectrical)
	g.GET("/rf", handler.GetRF)
	g.GET("/service", handler.GetService)
	g.GET("/calibration/:ptr", handler.GetCalibration)
	g.GET("/calibration-date", handler.GetCalibrationDate)
	g.GET("/snapshot", handler.GetSnapshot)

	w := g.Group("", middleware.APIKeyAuth(apiKeys, logger))
	w.PUT("/rf", handler.PutRF)
	w.PUT("/calibration/:ptr", handler.PutCalibration)
	w.PUT("/calibration-date", handler.PutCalibrationDate)
	w.PUT("/serial", handler.PutSerial)
	w.POST("/restart-measurements", handler.RestartMeasurements)
	w.POST("/password", handler.EnterPassword)

	if len(apiKeys) == 0 {
		logger.Warn("device write endpoints are not protected by an api key")
	}
}
