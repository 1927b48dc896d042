package command

import (
	"context"
	"time"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Calibration 校准常数与校准日期
type Calibration struct {
	s Sender
}

// ReadConst 0x72，ptr 0..11
func (c *Calibration) ReadConst(ctx context.Context, addr rim384.Address, ptr int) ([]byte, error) {
	if err := rim384.ValidateReadPointer(ptr); err != nil {
		return nil, err
	}
	req := rim384.NewRequest(addr, rim384.OpReadCalibConst, byte(ptr))
	return exchange(ctx, c.s, req, true, rim384.CalibConstFrameLen)
}

// WriteConst 0x73，按指针检查取值范围后发送
func (c *Calibration) WriteConst(ctx context.Context, addr rim384.Address, ptr, value int) ([]byte, error) {
	payload, err := rim384.EncodeCalibrationConst(ptr, value)
	if err != nil {
		return nil, err
	}
	req := rim384.NewRequest(addr, rim384.OpWriteCalibConst, payload...)
	return exchange(ctx, c.s, req, true, rim384.AckFrameLen)
}

// ReadDate 0x74
func (c *Calibration) ReadDate(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpReadCalibDate)
	return exchange(ctx, c.s, req, true, rim384.CalibDateFrameLen)
}

// WriteDate 0x75
func (c *Calibration) WriteDate(ctx context.Context, addr rim384.Address, date time.Time) ([]byte, error) {
	payload, err := rim384.EncodeCalibrationDate(date)
	if err != nil {
		return nil, err
	}
	req := rim384.NewRequest(addr, rim384.OpWriteCalibDate, payload...)
	return exchange(ctx, c.s, req, true, rim384.AckFrameLen)
}
