// Package simulator 在内存中模拟一台 RiM384 测量模块，实现与真实链路相同的收发接口
package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// 设备状态码
const (
	StatusUnknownCommand byte = 0x01
	StatusBadParameter   byte = 0x02
	StatusAccessDenied   byte = 0x03
)

// Fault 一次性故障注入
type Fault int

const (
	FaultNone Fault = iota
	FaultChecksum
	FaultAddress
	FaultStatus
	FaultTruncate
)

var errStopped = errors.New("simulator: link not started")

// Device 模拟设备；零值不可用，使用 New
type Device struct {
	mu sync.Mutex

	Address       rim384.Address
	Version       [2]byte // minor, major（BCD）
	TypeCode      [3]byte // b7, b8, b9
	Uptime        uint32
	WritePassword string
	Consts        [12]uint16
	CalibSeconds  uint32
	RF            byte
	SignalLevel   float32
	Service       [3]byte
	Measured      [20]byte
	Electrical    map[rim384.ElectricalParam][4]int32

	started      bool
	writeAllowed bool
	notReady     int
	fault        Fault
	requests     int
}

// New 默认状态：版本 1.05，类型 РиМ 384.01
func New(addr rim384.Address) *Device {
	d := &Device{
		Address:     addr,
		Version:     [2]byte{0x05, 0x01},
		TypeCode:    [3]byte{0x01, 0x84, 0x03},
		Uptime:      3600,
		RF:          0x42,
		SignalLevel: -71.5,
		Service:     [3]byte{52, 120, 23},
		Electrical:  map[rim384.ElectricalParam][4]int32{},
	}
	d.Consts[11] = math.MaxUint16
	le := binary.LittleEndian
	le.PutUint32(d.Measured[0:], 12345)
	le.PutUint32(d.Measured[4:], 78)
	le.PutUint16(d.Measured[8:], 231)
	le.PutUint32(d.Measured[10:], 53400)
	le.PutUint16(d.Measured[18:], 5000)
	return d
}

func (d *Device) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *Device) Close() error { return d.Stop() }

func (d *Device) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Inject 下一次应答注入故障
func (d *Device) Inject(f Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fault = f
}

// Requests 已处理的请求数
func (d *Device) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

// Send 处理一帧请求并返回应答帧
func (d *Device) Send(ctx context.Context, req []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, errStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.requests++

	resp := d.handle(req)
	switch d.fault {
	case FaultChecksum:
		resp[len(resp)-1] ^= 0xFF
	case FaultAddress:
		resp[0] ^= 0x01
		rim384.AddChecksum(resp)
	case FaultStatus:
		resp = d.status(req[3], StatusBadParameter)
	case FaultTruncate:
		resp = resp[:len(resp)-1]
	}
	d.fault = FaultNone
	return resp, nil
}

func (d *Device) reply(op byte, payload ...byte) []byte {
	return rim384.NewRequest(d.Address, op, payload...)
}

func (d *Device) status(op, code byte) []byte {
	return rim384.NewRequest(d.Address, op^0x80, code)
}

func (d *Device) handle(req []byte) []byte {
	if !rim384.VerifyChecksum(req) || len(req) < rim384.HeaderLen+rim384.ChecksumLen {
		return d.status(0x00, StatusBadParameter)
	}
	op := req[3]
	payload := req[rim384.HeaderLen : len(req)-rim384.ChecksumLen]
	le := binary.LittleEndian

	// 序列号命令不校验地址
	if op == rim384.OpSerialNumber {
		return d.serial(req)
	}
	if rim384.AddressOf(req) != d.Address {
		return d.status(op, StatusBadParameter)
	}
	if len(payload) < minPayload[op] {
		return d.status(op, StatusBadParameter)
	}

	switch op {
	case rim384.OpVersion:
		return d.reply(op, d.Version[0], d.Version[1], d.TypeCode[0], d.TypeCode[1], d.TypeCode[2])
	case rim384.OpUptime:
		return d.reply(op, le.AppendUint32(nil, d.Uptime)...)
	case rim384.OpWritePassword:
		if string(trimZero(payload)) != d.WritePassword {
			d.writeAllowed = false
			return d.status(op, StatusAccessDenied)
		}
		d.writeAllowed = true
		return d.reply(op)
	case rim384.OpReadPassword:
		return d.reply(op)
	case rim384.OpElectrical:
		p := rim384.ElectricalParam(payload[0])
		if !p.Valid() {
			return d.status(op, StatusBadParameter)
		}
		values, ok := d.Electrical[p]
		if !ok {
			values = [4]int32{-1, -1, -1, -1}
		}
		out := []byte{byte(p)}
		for _, v := range values {
			out = le.AppendUint32(out, uint32(v))
		}
		return d.reply(op, out...)
	case rim384.OpMeasuredValues:
		if d.notReady > 0 {
			d.notReady--
			return d.reply(op)
		}
		return d.reply(op, d.Measured[:]...)
	case rim384.OpRestartMeasuring:
		d.notReady = 1
		return d.reply(op)
	case rim384.OpReadCalibConst:
		ptr := int(payload[0])
		if ptr > 11 {
			return d.status(op, StatusBadParameter)
		}
		return d.reply(op, append([]byte{byte(ptr)}, le.AppendUint16(nil, d.Consts[ptr])...)...)
	case rim384.OpWriteCalibConst:
		if !d.writeAllowed {
			return d.status(op, StatusAccessDenied)
		}
		if ptr := int(payload[0]); ptr <= 11 {
			d.Consts[ptr] = le.Uint16(payload[1:3])
		}
		return d.reply(op)
	case rim384.OpReadCalibDate:
		return d.reply(op, le.AppendUint32(nil, d.CalibSeconds)...)
	case rim384.OpWriteCalibDate:
		if !d.writeAllowed {
			return d.status(op, StatusAccessDenied)
		}
		d.CalibSeconds = le.Uint32(payload[0:4])
		return d.reply(op)
	case rim384.OpRFSignalLevel:
		out := le.AppendUint32(nil, math.Float32bits(d.SignalLevel))
		return d.reply(op, append(out, 0, 0, 0, 0)...)
	case rim384.OpRFSettings:
		return d.reply(op, d.RF)
	case rim384.OpWriteRFSettings:
		if !d.writeAllowed {
			return d.status(op, StatusAccessDenied)
		}
		d.RF = payload[0]
		return d.reply(op)
	case rim384.OpServiceParams:
		return d.reply(op, d.Service[:]...)
	}
	return d.status(op, StatusUnknownCommand)
}

// minPayload 各命令请求负载的最小长度
var minPayload = map[byte]int{
	rim384.OpElectrical:      1,
	rim384.OpReadCalibConst:  1,
	rim384.OpWriteCalibConst: 3,
	rim384.OpWriteCalibDate:  4,
	rim384.OpWriteRFSettings: 1,
}

// serial 地址全零为读，否则为写入新序列号
func (d *Device) serial(req []byte) []byte {
	target := rim384.AddressOf(req)
	if target == 0 {
		a := d.Address.Bytes()
		return d.reply(rim384.OpSerialNumber, a[:]...)
	}
	d.Address = target
	return d.reply(rim384.OpSerialNumber)
}

func trimZero(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
