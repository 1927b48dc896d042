package command

import (
	"context"
	"fmt"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Service 测量、序列号与服务参数
type Service struct {
	s Sender
}

// ReadElectrical 0x27，param 仅允许 0、1、4、5、6
func (c *Service) ReadElectrical(ctx context.Context, addr rim384.Address, param rim384.ElectricalParam) ([]byte, error) {
	if !param.Valid() {
		return nil, fmt.Errorf("%w: electrical parameter type %d is not supported", rim384.ErrValidation, param)
	}
	req := rim384.NewRequest(addr, rim384.OpElectrical, byte(param))
	return exchange(ctx, c.s, req, true, rim384.ElectricalFrameLen)
}

// ReadMeasured 0x70；平均周期未到时设备回 7 字节短帧
func (c *Service) ReadMeasured(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpMeasuredValues)
	return exchange(ctx, c.s, req, true, rim384.MeasuredFrameLen, rim384.NotReadyFrameLen)
}

// RestartMeasuring 0x71 重新开始平均
func (c *Service) RestartMeasuring(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpRestartMeasuring)
	return exchange(ctx, c.s, req, true, rim384.AckFrameLen)
}

// ReadSerial 0x7F，地址字段全零；应答地址不作比对
func (c *Service) ReadSerial(ctx context.Context) ([]byte, error) {
	req := rim384.NewRequest(0, rim384.OpSerialNumber)
	return exchange(ctx, c.s, req, false, rim384.SerialNumberFrameLen)
}

// WriteSerial 0x7F，新序列号直接写入地址字段
func (c *Service) WriteSerial(ctx context.Context, serial int64) ([]byte, error) {
	addr, err := rim384.NewAddress(serial)
	if err != nil {
		return nil, err
	}
	req := rim384.NewRequest(addr, rim384.OpSerialNumber)
	return exchange(ctx, c.s, req, false, rim384.AckFrameLen)
}

// ReadServiceParams 0x7E
func (c *Service) ReadServiceParams(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpServiceParams)
	return exchange(ctx, c.s, req, true, rim384.ServiceParamsFrameLen)
}

// ReadCurrentTime 设备应答与文档格式不符，暂不支持
func (c *Service) ReadCurrentTime(context.Context, rim384.Address) error {
	return fmt.Errorf("%w: read current time value", rim384.ErrUnsupported)
}
