package rim384

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// PasswordLen 口令字段固定 6 字节，不足补零
	PasswordLen = 6

	MinRFChannel = 1
	MaxRFChannel = 8
	MaxPowerCode = 7
)

// CalibrationEpoch 校准日期的时间基准
var CalibrationEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// EncodePassword 口令 UTF-8 字节，最长 6 字节
func EncodePassword(password string) ([]byte, error) {
	raw := []byte(password)
	if len(raw) > PasswordLen {
		return nil, fmt.Errorf("%w: password longer than %d bytes", ErrValidation, PasswordLen)
	}
	out := make([]byte, PasswordLen)
	copy(out, raw)
	return out, nil
}

// EncodeRFSettings (powerCode<<4) | (channel-1)
func EncodeRFSettings(channel, powerCode int) (byte, error) {
	if channel < MinRFChannel || channel > MaxRFChannel {
		return 0, fmt.Errorf("%w: RF channel must be between %d and %d", ErrValidation, MinRFChannel, MaxRFChannel)
	}
	if powerCode < 0 || powerCode > MaxPowerCode {
		return 0, fmt.Errorf("%w: power code must be between 0 and %d", ErrValidation, MaxPowerCode)
	}
	return byte(powerCode<<4 | (channel - 1)), nil
}

// EncodeCalibrationDate 自 2000-01-01 起的秒数，4 字节小端
func EncodeCalibrationDate(date time.Time) ([]byte, error) {
	if date.Year() < 2000 {
		return nil, fmt.Errorf("%w: calibration date must not be before 2000", ErrValidation)
	}
	secs := int64(date.Sub(CalibrationEpoch) / time.Second)
	if secs < 0 || secs > math.MaxUint32 {
		return nil, fmt.Errorf("%w: calibration date %s out of range", ErrValidation, date.Format(time.RFC3339))
	}
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(secs))
	return out, nil
}

// ValidateReadPointer 读校准常数只允许 0..11
func ValidateReadPointer(ptr int) error {
	if ptr < 0 || ptr > 11 {
		return fmt.Errorf("%w: calibration pointer must be between 0 and 11, got %d", ErrValidation, ptr)
	}
	return nil
}

// signedPointer 指针 1、3、9 为有符号 16 位
func signedPointer(ptr int) bool {
	return ptr == 1 || ptr == 3 || ptr == 9
}

// ValidateCalibrationConst 写校准常数的指针与取值范围检查
//
//	1, 3, 9   -> [-32768, 32767]
//	4         -> [0, 255]
//	11        -> 65535 或 [200, 5000]
//	254, 255  -> 0
//	其他 0..11 -> [0, 65535]
func ValidateCalibrationConst(ptr, value int) error {
	switch {
	case ptr >= 0 && ptr <= 11, ptr == 254, ptr == 255:
	default:
		return fmt.Errorf("%w: calibration pointer %d is not defined", ErrValidation, ptr)
	}

	var ok bool
	switch {
	case signedPointer(ptr):
		ok = value >= math.MinInt16 && value <= math.MaxInt16
	case ptr == 4:
		ok = value >= 0 && value <= 255
	case ptr == 11:
		ok = value == math.MaxUint16 || (value >= 200 && value <= 5000)
	case ptr == 254, ptr == 255:
		ok = value == 0
	default:
		ok = value >= 0 && value <= math.MaxUint16
	}
	if !ok {
		return fmt.Errorf("%w: value %d out of range for calibration pointer %d", ErrValidation, value, ptr)
	}
	return nil
}

// EncodeCalibrationConst pointer + 2 字节小端值
func EncodeCalibrationConst(ptr, value int) ([]byte, error) {
	if err := ValidateCalibrationConst(ptr, value); err != nil {
		return nil, err
	}
	out := make([]byte, 3)
	out[0] = byte(ptr)
	// 有符号值按补码截断
	binary.LittleEndian.PutUint16(out[1:], uint16(value))
	return out, nil
}
