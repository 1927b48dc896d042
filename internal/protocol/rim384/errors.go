package rim384

import (
	"errors"
	"fmt"
	"io"
)

// 错误类别
var (
	ErrValidation  = errors.New("invalid argument")
	ErrFraming     = errors.New("framing error")
	ErrAddress     = errors.New("device address mismatch")
	ErrDevice      = errors.New("device error")
	ErrSequence    = errors.New("request sequence mismatch")
	ErrDecode      = errors.New("decode error")
	ErrUnsupported = errors.New("operation not supported")
)

// DeviceError 设备返回的状态码（应答中操作码与请求不一致）
type DeviceError struct {
	Opcode byte
	Code   byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: opcode 0x%02X, status code %d", e.Opcode, e.Code)
}

// Is 使 errors.Is(err, ErrDevice) 成立
func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}

// Kind 错误分类标签，用于指标与 API 响应
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSequence):
		return "sequence"
	case errors.Is(err, ErrFraming), errors.Is(err, io.ErrUnexpectedEOF):
		return "framing"
	case errors.Is(err, ErrAddress):
		return "address"
	case errors.Is(err, ErrDevice):
		return "device"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "io"
	}
}
