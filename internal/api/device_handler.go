// Package api 设备 HTTP 接口
package api

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/api/middleware"
	"github.com/taoyao-code/rim384/internal/driver"
	"github.com/taoyao-code/rim384/internal/poller"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Device HTTP 接口使用的设备能力，*driver.Driver 实现
type Device interface {
	Address() rim384.Address
	ReadVersion(ctx context.Context) (rim384.VersionAndType, error)
	ReadUptime(ctx context.Context) (uint32, error)
	EnterWritePassword(ctx context.Context, password string) error
	EnterReadPassword(ctx context.Context, password string) error
	ReadElectricalIndicators(ctx context.Context, param rim384.ElectricalParam) (rim384.ElectricalIndicators, error)
	ReadMeasuredValues(ctx context.Context) (*rim384.MeasuredValues, error)
	RestartMeasuring(ctx context.Context) error
	ReadCalibrationConst(ctx context.Context, ptr int) (int, error)
	WriteCalibrationConst(ctx context.Context, ptr, value int) error
	ReadCalibrationDate(ctx context.Context) (time.Time, error)
	WriteCalibrationDate(ctx context.Context, date time.Time) error
	ReadRFSignalLevel(ctx context.Context) (float32, error)
	ReadRFSettings(ctx context.Context) (rim384.RFSettings, error)
	WriteRFSettings(ctx context.Context, channel, powerCode int) error
	WriteSerialNumber(ctx context.Context, serial int64) error
	ReadServiceParameters(ctx context.Context) (rim384.ServiceParameters, error)
}

// DeviceHandler 设备接口处理器
type DeviceHandler struct {
	dev    Device
	latest func() (poller.Snapshot, bool)
	logger *zap.Logger
}

// NewDeviceHandler latest 可为 nil（未启用采集）
func NewDeviceHandler(dev Device, latest func() (poller.Snapshot, bool), logger *zap.Logger) *DeviceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceHandler{dev: dev, latest: latest, logger: logger}
}

type exchangeDump struct {
	Request  string `json:"request"`
	Response string `json:"response,omitempty"`
}

// captures 收集一次 HTTP 请求内的全部帧交换
type captures struct {
	parent context.Context
	list   []*rim384.Exchange
}

func (c *captures) ctx() context.Context {
	ex := &rim384.Exchange{}
	c.list = append(c.list, ex)
	return driver.CaptureExchange(c.parent, ex)
}

func (c *captures) dump() []exchangeDump {
	out := make([]exchangeDump, 0, len(c.list))
	for _, ex := range c.list {
		if ex.Request == nil {
			continue
		}
		out = append(out, exchangeDump{
			Request:  hex.EncodeToString(ex.Request),
			Response: hex.EncodeToString(ex.Response),
		})
	}
	return out
}

// statusFor 按错误类别映射 HTTP 状态码
func statusFor(err error) int {
	switch rim384.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "device":
		return http.StatusConflict
	case "unsupported":
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"request_id": middleware.GetRequestID(c),
		"error":      msg,
		"kind":       "validation",
	})
}

// run 执行 fn 并统一输出 data/exchanges 或 error
func (h *DeviceHandler) run(c *gin.Context, fn func(exs *captures) (any, error)) {
	exs := &captures{parent: c.Request.Context()}
	data, err := fn(exs)
	body := gin.H{
		"request_id": middleware.GetRequestID(c),
		"exchanges":  exs.dump(),
	}
	if err != nil {
		h.logger.Warn("device request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		body["error"] = err.Error()
		body["kind"] = rim384.Kind(err)
		var de *rim384.DeviceError
		if errors.As(err, &de) {
			body["device_code"] = de.Code
		}
		c.JSON(statusFor(err), body)
		return
	}
	body["data"] = data
	c.JSON(http.StatusOK, body)
}

// GetInfo 地址、版本、运行时间
func (h *DeviceHandler) GetInfo(c *gin.Context) {
	h.run(c, func(exs *captures) (any, error) {
		vt, err := h.dev.ReadVersion(exs.ctx())
		if err != nil {
			return nil, err
		}
		uptime, err := h.dev.ReadUptime(exs.ctx())
		if err != nil {
			return nil, err
		}
		return gin.H{
			"address":        uint32(h.dev.Address()),
			"version":        vt.Version,
			"type":           vt.Type,
			"uptime_seconds": uptime,
		}, nil
	})
}

// GetMeasurements 平均周期未结束时 data.values 为 null
func (h *DeviceHandler) GetMeasurements(c *gin.Context) {
	h.run(c, func(exs *captures) (any, error) {
		mv, err := h.dev.ReadMeasuredValues(exs.ctx())
		if err != nil {
			return nil, err
		}
		return gin.H{"ready": mv != nil, "values": mv}, nil
	})
}

// GetElectrical /electrical/:param
func (h *DeviceHandler) GetElectrical(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("param"))
	param := rim384.ElectricalParam(n)
	if err != nil || n < 0 || n > 255 || !param.Valid() {
		badRequest(c, "param must be one of 0, 1, 4, 5, 6")
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		return h.dev.ReadElectricalIndicators(exs.ctx(), param)
	})
}

// GetRF 射频设置与信号电平
func (h *DeviceHandler) GetRF(c *gin.Context) {
	h.run(c, func(exs *captures) (any, error) {
		rf, err := h.dev.ReadRFSettings(exs.ctx())
		if err != nil {
			return nil, err
		}
		lvl, err := h.dev.ReadRFSignalLevel(exs.ctx())
		if err != nil {
			return nil, err
		}
		return gin.H{"settings": rf, "signal_level": lvl}, nil
	})
}

type rfRequest struct {
	Channel   *int `json:"channel" binding:"required"`
	PowerCode *int `json:"power_code" binding:"required"`
}

// PutRF 写射频设置，需先输入写口令
func (h *DeviceHandler) PutRF(c *gin.Context) {
	var req rfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		return nil, h.dev.WriteRFSettings(exs.ctx(), *req.Channel, *req.PowerCode)
	})
}

// GetService 服务参数
func (h *DeviceHandler) GetService(c *gin.Context) {
	h.run(c, func(exs *captures) (any, error) {
		return h.dev.ReadServiceParameters(exs.ctx())
	})
}

func pointerParam(c *gin.Context) (int, bool) {
	ptr, err := strconv.Atoi(c.Param("ptr"))
	if err != nil {
		badRequest(c, "pointer must be an integer")
		return 0, false
	}
	return ptr, true
}

// GetCalibration /calibration/:ptr
func (h *DeviceHandler) GetCalibration(c *gin.Context) {
	ptr, ok := pointerParam(c)
	if !ok {
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		v, err := h.dev.ReadCalibrationConst(exs.ctx(), ptr)
		if err != nil {
			return nil, err
		}
		return rim384.CalibrationConst{Pointer: ptr, Value: v}, nil
	})
}

type calibrationRequest struct {
	Value *int `json:"value" binding:"required"`
}

// PutCalibration 写校准常数
func (h *DeviceHandler) PutCalibration(c *gin.Context) {
	ptr, ok := pointerParam(c)
	if !ok {
		return
	}
	var req calibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		return nil, h.dev.WriteCalibrationConst(exs.ctx(), ptr, *req.Value)
	})
}

// GetCalibrationDate 校准日期
func (h *DeviceHandler) GetCalibrationDate(c *gin.Context) {
	h.run(c, func(exs *captures) (any, error) {
		date, err := h.dev.ReadCalibrationDate(exs.ctx())
		if err != nil {
			return nil, err
		}
		return gin.H{"date": date.Format(time.RFC3339)}, nil
	})
}

type dateRequest struct {
	Date time.Time `json:"date" binding:"required"`
}

// PutCalibrationDate body: {"date": RFC3339}
func (h *DeviceHandler) PutCalibrationDate(c *gin.Context) {
	var req dateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		return nil, h.dev.WriteCalibrationDate(exs.ctx(), req.Date)
	})
}

type serialRequest struct {
	Serial *int64 `json:"serial" binding:"required"`
}

// PutSerial 修改序列号，成功后后续请求使用新地址
func (h *DeviceHandler) PutSerial(c *gin.Context) {
	var req serialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		if err := h.dev.WriteSerialNumber(exs.ctx(), *req.Serial); err != nil {
			return nil, err
		}
		return gin.H{"address": uint32(h.dev.Address())}, nil
	})
}

// RestartMeasurements 重新开始平均周期
func (h *DeviceHandler) RestartMeasurements(c *gin.Context) {
	h.run(c, func(exs *captures) (any, error) {
		return nil, h.dev.RestartMeasuring(exs.ctx())
	})
}

type passwordRequest struct {
	Kind     string `json:"kind" binding:"required,oneof=read write"`
	Password string `json:"password"`
}

// EnterPassword body: {"kind": "read"|"write", "password": "..."}
func (h *DeviceHandler) EnterPassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(exs *captures) (any, error) {
		if req.Kind == "write" {
			return nil, h.dev.EnterWritePassword(exs.ctx(), req.Password)
		}
		return nil, h.dev.EnterReadPassword(exs.ctx(), req.Password)
	})
}

// GetSnapshot 最近一次采集结果
func (h *DeviceHandler) GetSnapshot(c *gin.Context) {
	if h.latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"request_id": middleware.GetRequestID(c), "error": "polling disabled"})
		return
	}
	snap, ok := h.latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"request_id": middleware.GetRequestID(c), "error": "no snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": middleware.GetRequestID(c), "data": snap})
}
