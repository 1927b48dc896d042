// Package driver 单台 RiM384 测量模块的访问入口
//
// Driver 持有设备地址，每个方法对应一项设备能力：发送命令、解析应答，
// 所有失败统一包装为 *Error。同一 Driver 上的请求/应答交换串行执行。
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/command"
	"github.com/taoyao-code/rim384/internal/logging"
	"github.com/taoyao-code/rim384/internal/metrics"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
	"github.com/taoyao-code/rim384/internal/transport"
)

// ErrSerialMismatch 写序列号后设备回显的地址与请求值不一致
var ErrSerialMismatch = fmt.Errorf("%w: serial number was not applied", rim384.ErrAddress)

// Error 驱动层统一错误
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "rim384 " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Option 可选配置
type Option func(*Driver)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.DriverMetrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver 设备访问入口
type Driver struct {
	link    transport.Transport
	cmd     *command.Set
	logger  *zap.Logger
	metrics *metrics.DriverMetrics

	mu   sync.Mutex
	addr rim384.Address
}

// New 创建驱动，address 为设备当前序列号
func New(link transport.Transport, address int64, opts ...Option) (*Driver, error) {
	addr, err := rim384.NewAddress(address)
	if err != nil {
		return nil, &Error{Op: "new", Err: err}
	}
	d := &Driver{
		link:   link,
		cmd:    command.NewSet(link),
		logger: zap.NewNop(),
		addr:   addr,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.metrics.SetAddress(uint32(addr))
	return d, nil
}

// CaptureExchange 返回的 ctx 传给任一方法后，ex 中记录本次请求与应答字节
func CaptureExchange(ctx context.Context, ex *rim384.Exchange) context.Context {
	return command.WithExchange(ctx, ex)
}

// Start 打开链路
func (d *Driver) Start(ctx context.Context) error {
	if err := d.link.Start(ctx); err != nil {
		return &Error{Op: "start", Err: err}
	}
	d.metrics.SetLinkUp(true)
	return nil
}

// Stop 关闭链路
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics.SetLinkUp(false)
	if err := d.link.Stop(); err != nil {
		return &Error{Op: "stop", Err: err}
	}
	return nil
}

func (d *Driver) Close() error { return d.Stop() }

// Started 链路是否已打开
func (d *Driver) Started() bool { return d.link.Started() }

// Address 当前设备地址
func (d *Driver) Address() rim384.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// SetAddress 切换到另一台设备地址（不与设备通信）
func (d *Driver) SetAddress(address int64) error {
	addr, err := rim384.NewAddress(address)
	if err != nil {
		return &Error{Op: "set_address", Err: err}
	}
	d.mu.Lock()
	d.addr = addr
	d.mu.Unlock()
	d.metrics.SetAddress(uint32(addr))
	return nil
}

type sendFunc func(ctx context.Context, addr rim384.Address) ([]byte, error)

// call 持锁完成一次交换与解析，记录日志与指标，错误包装为 *Error
func call[T any](d *Driver, ctx context.Context, op string, send sendFunc, parse func([]byte) (T, error)) (T, error) {
	var zero T
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return zero, &Error{Op: op, Err: err}
	}
	ex := command.ExchangeFrom(ctx)
	if ex == nil {
		ex = &rim384.Exchange{}
		ctx = command.WithExchange(ctx, ex)
	}

	start := time.Now()
	resp, err := send(ctx, d.addr)
	var out T
	if err == nil {
		out, err = parse(resp)
	}
	elapsed := time.Since(start)
	d.metrics.ObserveCommand(op, rim384.Kind(err), elapsed)

	if ex.Request != nil {
		xid := logging.RequestID(ctx)
		if xid == "" {
			xid = uuid.NewString()
		}
		d.logger.Debug("exchange",
			zap.String("op", op),
			zap.String("xid", xid),
			zap.Uint32("address", uint32(d.addr)),
			logging.Frame("tx", ex.Request),
			logging.Frame("rx", ex.Response),
			zap.Duration("elapsed", elapsed),
		)
	}
	if err != nil {
		d.logger.Warn("command failed", zap.String("op", op), zap.String("kind", rim384.Kind(err)), zap.Error(err))
		return zero, &Error{Op: op, Err: err}
	}
	return out, nil
}

func ack([]byte) (struct{}, error) { return struct{}{}, nil }

// ReadVersion 设备类型与固件版本
func (d *Driver) ReadVersion(ctx context.Context) (rim384.VersionAndType, error) {
	return call(d, ctx, "read_version", d.cmd.Info.ReadVersion, rim384.ParseVersionAndType)
}

// ReadUptime 运行时间（秒）
func (d *Driver) ReadUptime(ctx context.Context) (uint32, error) {
	return call(d, ctx, "read_uptime", d.cmd.Info.ReadUptime, rim384.ParseUint32)
}

// EnterWritePassword 输入写口令
func (d *Driver) EnterWritePassword(ctx context.Context, password string) error {
	_, err := call(d, ctx, "enter_write_password", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.Password.EnterWrite(ctx, a, password)
	}, ack)
	return err
}

// EnterReadPassword 输入读口令
func (d *Driver) EnterReadPassword(ctx context.Context, password string) error {
	_, err := call(d, ctx, "enter_read_password", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.Password.EnterRead(ctx, a, password)
	}, ack)
	return err
}

// ReadElectricalIndicators 读取指定类型的电参数
func (d *Driver) ReadElectricalIndicators(ctx context.Context, param rim384.ElectricalParam) (rim384.ElectricalIndicators, error) {
	return call(d, ctx, "read_electrical", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.Service.ReadElectrical(ctx, a, param)
	}, rim384.ParseElectricalIndicators)
}

// ReadMeasuredValues 平均周期未结束时返回 nil
func (d *Driver) ReadMeasuredValues(ctx context.Context) (*rim384.MeasuredValues, error) {
	return call(d, ctx, "read_measured", d.cmd.Service.ReadMeasured, rim384.ParseMeasuredValues)
}

// RestartMeasuring 重新开始测量平均
func (d *Driver) RestartMeasuring(ctx context.Context) error {
	_, err := call(d, ctx, "restart_measuring", d.cmd.Service.RestartMeasuring, ack)
	return err
}

// ReadCalibrationConst 读取校准常数
func (d *Driver) ReadCalibrationConst(ctx context.Context, ptr int) (int, error) {
	return call(d, ctx, "read_calibration_const", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.Calibration.ReadConst(ctx, a, ptr)
	}, func(resp []byte) (int, error) {
		c, err := rim384.ParseCalibrationConst(resp)
		return c.Value, err
	})
}

// WriteCalibrationConst 写入校准常数
func (d *Driver) WriteCalibrationConst(ctx context.Context, ptr, value int) error {
	_, err := call(d, ctx, "write_calibration_const", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.Calibration.WriteConst(ctx, a, ptr, value)
	}, ack)
	return err
}

// ReadCalibrationDate 校准日期
func (d *Driver) ReadCalibrationDate(ctx context.Context) (time.Time, error) {
	return call(d, ctx, "read_calibration_date", d.cmd.Calibration.ReadDate, rim384.ParseCalibrationDate)
}

// WriteCalibrationDate 写入校准日期
func (d *Driver) WriteCalibrationDate(ctx context.Context, date time.Time) error {
	_, err := call(d, ctx, "write_calibration_date", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.Calibration.WriteDate(ctx, a, date)
	}, ack)
	return err
}

// ReadRFSignalLevel 射频信号电平
func (d *Driver) ReadRFSignalLevel(ctx context.Context) (float32, error) {
	return call(d, ctx, "read_rf_signal", d.cmd.RF.ReadSignalLevel, rim384.ParseRFSignalLevel)
}

// ReadRFSettings 射频信道与功率
func (d *Driver) ReadRFSettings(ctx context.Context) (rim384.RFSettings, error) {
	return call(d, ctx, "read_rf_settings", d.cmd.RF.ReadSettings, rim384.ParseRFSettings)
}

// WriteRFSettings 写入射频信道与功率码
func (d *Driver) WriteRFSettings(ctx context.Context, channel, powerCode int) error {
	_, err := call(d, ctx, "write_rf_settings", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return d.cmd.RF.WriteSettings(ctx, a, channel, powerCode)
	}, ack)
	return err
}

// ReadSerialNumber 读取模块序列号
func (d *Driver) ReadSerialNumber(ctx context.Context) (rim384.Address, error) {
	return call(d, ctx, "read_serial", func(ctx context.Context, _ rim384.Address) ([]byte, error) {
		return d.cmd.Service.ReadSerial(ctx)
	}, rim384.ParseSerialNumber)
}

// WriteSerialNumber 修改模块序列号；设备回显一致后才更新持有的地址
func (d *Driver) WriteSerialNumber(ctx context.Context, serial int64) error {
	_, err := call(d, ctx, "write_serial", func(ctx context.Context, _ rim384.Address) ([]byte, error) {
		return d.cmd.Service.WriteSerial(ctx, serial)
	}, func(resp []byte) (struct{}, error) {
		got := rim384.AddressOf(resp)
		if int64(got) != serial {
			return struct{}{}, fmt.Errorf("%w: requested %d, device reports %d", ErrSerialMismatch, serial, got)
		}
		d.addr = got
		return struct{}{}, nil
	})
	if err == nil {
		d.metrics.SetAddress(uint32(serial))
	}
	return err
}

// ReadServiceParameters 超级电容电压、供电电压与温度
func (d *Driver) ReadServiceParameters(ctx context.Context) (rim384.ServiceParameters, error) {
	return call(d, ctx, "read_service_params", d.cmd.Service.ReadServiceParams, rim384.ParseServiceParameters)
}

// ReadCurrentTime 不支持，始终返回错误
func (d *Driver) ReadCurrentTime(ctx context.Context) error {
	_, err := call(d, ctx, "read_current_time", func(ctx context.Context, a rim384.Address) ([]byte, error) {
		return nil, d.cmd.Service.ReadCurrentTime(ctx, a)
	}, ack)
	return err
}
