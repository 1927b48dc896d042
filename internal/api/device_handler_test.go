package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/driver"
	"github.com/taoyao-code/rim384/internal/poller"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
	"github.com/taoyao-code/rim384/internal/simulator"
)

const testKey = "sk_test_123456789"

type envelope struct {
	RequestID  string          `json:"request_id"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Kind       string          `json:"kind"`
	DeviceCode *int            `json:"device_code"`
	Exchanges  []exchangeDump  `json:"exchanges"`
}

type testEnv struct {
	engine *gin.Engine
	sim    *simulator.Device
	drv    *driver.Driver
}

func newEnv(t *testing.T, latest func() (poller.Snapshot, bool)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sim := simulator.New(44922)
	sim.WritePassword = "123456"
	d, err := driver.New(sim, 44922)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	r := gin.New()
	RegisterDeviceRoutes(r, NewDeviceHandler(d, latest, zap.NewNop()), []string{testKey}, zap.NewNop())
	return &testEnv{engine: r, sim: sim, drv: d}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("X-API-Key", testKey)
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

func TestGetInfo(t *testing.T) {
	e := newEnv(t, nil)
	rr, env := e.do(t, http.MethodGet, "/api/v1/device", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, rr.Header().Get("X-Request-ID"), env.RequestID)

	var info struct {
		Address uint32  `json:"address"`
		Version float64 `json:"version"`
		Type    string  `json:"type"`
		Uptime  uint32  `json:"uptime_seconds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, uint32(44922), info.Address)
	assert.Equal(t, "РиМ 384.01", info.Type)
	assert.Equal(t, uint32(3600), info.Uptime)

	require.Len(t, env.Exchanges, 2)
	// 44922 = 0x00AF7A，小端地址 + 操作码 0x00 + 长度 2
	assert.Equal(t, "7aaf000002", env.Exchanges[0].Request[:10])
	assert.NotEmpty(t, env.Exchanges[0].Response)
}

func TestGetMeasurementsNotReady(t *testing.T) {
	e := newEnv(t, nil)
	rr, _ := e.do(t, http.MethodPost, "/api/v1/device/restart-measurements", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, env := e.do(t, http.MethodGet, "/api/v1/device/measurements", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var data struct {
		Ready  bool                   `json:"ready"`
		Values *rim384.MeasuredValues `json:"values"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Ready)
	assert.Nil(t, data.Values)

	_, env = e.do(t, http.MethodGet, "/api/v1/device/measurements", nil)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Ready)
	require.NotNil(t, data.Values)
	assert.Equal(t, 231, data.Values.RMSVoltage)
}

func TestGetElectrical(t *testing.T) {
	e := newEnv(t, nil)
	e.sim.Electrical[rim384.ParamCurrent] = [4]int32{9, 3, 3, 3}

	rr, env := e.do(t, http.MethodGet, "/api/v1/device/electrical/5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var ei rim384.ElectricalIndicators
	require.NoError(t, json.Unmarshal(env.Data, &ei))
	require.NotNil(t, ei.Total)
	assert.Equal(t, int32(9), *ei.Total)

	for _, p := range []string{"2", "x", "-1"} {
		rr, env = e.do(t, http.MethodGet, "/api/v1/device/electrical/"+p, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, p)
		assert.Equal(t, "validation", env.Kind)
	}
	assert.Equal(t, 1, e.sim.Requests())
}

func TestRFReadWrite(t *testing.T) {
	e := newEnv(t, nil)

	rr, env := e.do(t, http.MethodPut, "/api/v1/device/rf", gin.H{"channel": 5, "power_code": 7})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "device", env.Kind)
	require.NotNil(t, env.DeviceCode)
	assert.Equal(t, int(simulator.StatusAccessDenied), *env.DeviceCode)
	require.Len(t, env.Exchanges, 1)

	rr, _ = e.do(t, http.MethodPost, "/api/v1/device/password", gin.H{"kind": "write", "password": "123456"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = e.do(t, http.MethodPut, "/api/v1/device/rf", gin.H{"channel": 5, "power_code": 7})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, env = e.do(t, http.MethodGet, "/api/v1/device/rf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var data struct {
		Settings    rim384.RFSettings `json:"settings"`
		SignalLevel float32           `json:"signal_level"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, rim384.RFSettings{Channel: 5, PowerCode: 7, PowerDBm: 10}, data.Settings)
	assert.Equal(t, float32(-71.5), data.SignalLevel)
}

func TestRFWriteValidation(t *testing.T) {
	e := newEnv(t, nil)
	rr, env := e.do(t, http.MethodPut, "/api/v1/device/rf", gin.H{"channel": 9, "power_code": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation", env.Kind)
	assert.Empty(t, env.Exchanges)

	rr, _ = e.do(t, http.MethodPut, "/api/v1/device/rf", gin.H{"channel": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, e.sim.Requests())
}

func TestCalibrationEndpoints(t *testing.T) {
	e := newEnv(t, nil)
	_, _ = e.do(t, http.MethodPost, "/api/v1/device/password", gin.H{"kind": "write", "password": "123456"})

	rr, _ := e.do(t, http.MethodPut, "/api/v1/device/calibration/3", gin.H{"value": -5})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, env := e.do(t, http.MethodGet, "/api/v1/device/calibration/3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cc rim384.CalibrationConst
	require.NoError(t, json.Unmarshal(env.Data, &cc))
	assert.Equal(t, rim384.CalibrationConst{Pointer: 3, Value: -5}, cc)

	rr, _ = e.do(t, http.MethodGet, "/api/v1/device/calibration/12", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = e.do(t, http.MethodPut, "/api/v1/device/calibration/4", gin.H{"value": 300})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rr, _ = e.do(t, http.MethodPut, "/api/v1/device/calibration-date", gin.H{"date": date.Format(time.RFC3339)})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, env = e.do(t, http.MethodGet, "/api/v1/device/calibration-date", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Date string `json:"date"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "2024-05-01T10:00:00Z", got.Date)
}

func TestPutSerialUpdatesAddress(t *testing.T) {
	e := newEnv(t, nil)
	rr, env := e.do(t, http.MethodPut, "/api/v1/device/serial", gin.H{"serial": 123456})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"address":123456}`, string(env.Data))
	assert.Equal(t, rim384.Address(123456), e.drv.Address())

	rr, _ = e.do(t, http.MethodGet, "/api/v1/device/service", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWriteRequiresAPIKey(t *testing.T) {
	e := newEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/device/restart-measurements", nil)
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 0, e.sim.Requests())
}

func TestLinkErrorMapsToBadGateway(t *testing.T) {
	e := newEnv(t, nil)
	e.sim.Inject(simulator.FaultChecksum)
	rr, env := e.do(t, http.MethodGet, "/api/v1/device/service", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "framing", env.Kind)
	require.Len(t, env.Exchanges, 1)
	assert.NotEmpty(t, env.Exchanges[0].Response)
}

func TestSnapshot(t *testing.T) {
	e := newEnv(t, nil)
	rr, _ := e.do(t, http.MethodGet, "/api/v1/device/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	snap := poller.Snapshot{Address: 44922, Time: time.Unix(1700000000, 0).UTC()}
	e = newEnv(t, func() (poller.Snapshot, bool) { return snap, true })
	rr, env := e.do(t, http.MethodGet, "/api/v1/device/snapshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got poller.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, uint32(44922), got.Address)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(rim384.ErrValidation))
	assert.Equal(t, http.StatusConflict, statusFor(&rim384.DeviceError{Opcode: 0x79, Code: 3}))
	assert.Equal(t, http.StatusNotImplemented, statusFor(&driver.Error{Op: "read_current_time", Err: rim384.ErrUnsupported}))
	assert.Equal(t, http.StatusBadGateway, statusFor(rim384.ErrFraming))
	assert.Equal(t, http.StatusBadGateway, statusFor(context.DeadlineExceeded))
}
