package rim384

import (
	"fmt"
	"slices"
)

// 帧布局
// 请求: addr[3] LE | opcode[1] | len[1] | payload[..] | crcLE[2]
// 应答: addr[3] LE | opcode[1] | count[1] | payload[..] | crcLE[2]
// len/count 为头部之后的字节数（含 CRC）；payload 仅 1 字节时为设备状态码
const (
	HeaderLen     = 5
	ErrorFrameLen = 6 + ChecksumLen
	MaxAddress    = 0xFFFFFF
)

// 操作码
const (
	OpVersion          byte = 0x00
	OpUptime           byte = 0x01
	OpWritePassword    byte = 0x02
	OpReadPassword     byte = 0x04
	OpElectrical       byte = 0x27
	OpRFSignalLevel    byte = 0x6B
	OpMeasuredValues   byte = 0x70
	OpRestartMeasuring byte = 0x71
	OpReadCalibConst   byte = 0x72
	OpWriteCalibConst  byte = 0x73
	OpReadCalibDate    byte = 0x74
	OpWriteCalibDate   byte = 0x75
	OpRFSettings       byte = 0x78
	OpWriteRFSettings  byte = 0x79
	OpServiceParams    byte = 0x7E
	OpSerialNumber     byte = 0x7F
)

// Address 设备地址（即模块序列号），线上以 3 字节小端传输
type Address uint32

// NewAddress 校验范围 [0, 16777215]
func NewAddress(v int64) (Address, error) {
	if v < 0 || v > MaxAddress {
		return 0, fmt.Errorf("%w: serial number must be between 0 and %d, got %d", ErrValidation, MaxAddress, v)
	}
	return Address(v), nil
}

// Bytes 小端 3 字节
func (a Address) Bytes() [3]byte {
	return [3]byte{byte(a), byte(a >> 8), byte(a >> 16)}
}

// AddressOf 取帧前 3 字节还原地址
func AddressOf(frame []byte) Address {
	if len(frame) < 3 {
		return 0
	}
	return Address(frame[0]) | Address(frame[1])<<8 | Address(frame[2])<<16
}

// Exchange 一次请求/应答的原始字节
type Exchange struct {
	Request  []byte
	Response []byte
}

// NewRequest 构造带 CRC 的请求帧
func NewRequest(addr Address, opcode byte, payload ...byte) []byte {
	frame := make([]byte, HeaderLen+len(payload)+ChecksumLen)
	a := addr.Bytes()
	copy(frame, a[:])
	frame[3] = opcode
	frame[4] = byte(len(payload) + ChecksumLen)
	copy(frame[HeaderLen:], payload)
	return AddChecksum(frame)
}

// ValidateResponse 按顺序校验应答：CRC、长度、地址回显、操作码回显
// successLens 为成功应答的完整长度（含 CRC）；checkAddress 为 false 时跳过地址比对
func ValidateResponse(req, resp []byte, checkAddress bool, successLens ...int) error {
	if !VerifyChecksum(resp) {
		return fmt.Errorf("%w: bad checksum in response % X", ErrFraming, resp)
	}
	if len(resp) != ErrorFrameLen && !slices.Contains(successLens, len(resp)) {
		return fmt.Errorf("%w: unexpected response length %d", ErrFraming, len(resp))
	}
	if checkAddress {
		sent, got := AddressOf(req), AddressOf(resp)
		if sent != got {
			return fmt.Errorf("%w: got %d, expected %d", ErrAddress, got, sent)
		}
	}
	if resp[3] != req[3] {
		return &DeviceError{Opcode: req[3], Code: resp[5]}
	}
	if !slices.Contains(successLens, len(resp)) {
		return fmt.Errorf("%w: unexpected response length %d for opcode 0x%02X", ErrFraming, len(resp), req[3])
	}
	return nil
}
