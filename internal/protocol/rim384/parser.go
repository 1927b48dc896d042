package rim384

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TypePrefix 设备类型字符串前缀
const TypePrefix = "РиМ"

// 各应答的成功长度（含 CRC）
const (
	VersionFrameLen       = 10 + ChecksumLen
	UptimeFrameLen        = 9 + ChecksumLen
	AckFrameLen           = 5 + ChecksumLen
	ElectricalFrameLen    = 22 + ChecksumLen
	MeasuredFrameLen      = 25 + ChecksumLen
	NotReadyFrameLen      = 5 + ChecksumLen
	CalibConstFrameLen    = 8 + ChecksumLen
	CalibDateFrameLen     = 9 + ChecksumLen
	RFSignalFrameLen      = 13 + ChecksumLen
	RFSettingsFrameLen    = 6 + ChecksumLen
	SerialNumberFrameLen  = 8 + ChecksumLen
	ServiceParamsFrameLen = 8 + ChecksumLen
)

var powerTable = map[int]float64{
	0: 7.8,
	1: -15,
	2: -10,
	3: -5,
	4: 0,
	5: 5,
	6: 7,
	7: 10,
}

func need(data []byte, n int) error {
	if len(data) < n {
		return fmt.Errorf("%w: frame too short (%d < %d)", ErrDecode, len(data), n)
	}
	return nil
}

// bcd 按十六进制显示后去掉前导零，再作为十进制解析；0x00 视为 0
func bcd(b byte) (int, error) {
	s := strings.TrimLeft(fmt.Sprintf("%02X", b), "0")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: byte 0x%02X is not BCD", ErrDecode, b)
	}
	return v, nil
}

// ParseVersionAndType 版本 = data[6] + data[5]*0.01（BCD），类型 = "РиМ <b9><b8>.<b7>"
func ParseVersionAndType(data []byte) (VersionAndType, error) {
	if err := need(data, 10); err != nil {
		return VersionAndType{}, err
	}
	major, err := bcd(data[6])
	if err != nil {
		return VersionAndType{}, err
	}
	minor, err := bcd(data[5])
	if err != nil {
		return VersionAndType{}, err
	}
	typ := fmt.Sprintf("%s %s%02X.%02X", TypePrefix,
		strings.TrimLeft(fmt.Sprintf("%02X", data[9]), "0"), data[8], data[7])
	return VersionAndType{
		Version: math.Round((float64(major)+float64(minor)*0.01)*100) / 100,
		Type:    typ,
	}, nil
}

// ParseUint32 offset 5 起的 4 字节小端（运行时间、校准日期）
func ParseUint32(data []byte) (uint32, error) {
	if err := need(data, 9); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[5:9]), nil
}

// ParseCalibrationDate 2000-01-01 加上秒数
func ParseCalibrationDate(data []byte) (time.Time, error) {
	secs, err := ParseUint32(data)
	if err != nil {
		return time.Time{}, err
	}
	return CalibrationEpoch.Add(time.Duration(secs) * time.Second), nil
}

func optional(v int32) *int32 {
	if v == -1 {
		return nil
	}
	return &v
}

// ParseElectricalIndicators data[5] 为设置类型，其后 4 个 int32，-1 表示无数据
func ParseElectricalIndicators(data []byte) (ElectricalIndicators, error) {
	if err := need(data, 22); err != nil {
		return ElectricalIndicators{}, err
	}
	field := func(off int) *int32 {
		return optional(int32(binary.LittleEndian.Uint32(data[off : off+4])))
	}
	return ElectricalIndicators{
		SettingsType: int(data[5]),
		Total:        field(6),
		PhaseA:       field(10),
		PhaseB:       field(14),
		PhaseC:       field(18),
	}, nil
}

// ParseSerialNumber data[5..7] 零扩展
func ParseSerialNumber(data []byte) (Address, error) {
	if err := need(data, 8); err != nil {
		return 0, err
	}
	return AddressOf(data[5:8]), nil
}

// ParseRFSignalLevel offset 5 的 IEEE754 float32
func ParseRFSignalLevel(data []byte) (float32, error) {
	if err := need(data, 9); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data[5:9])), nil
}

// DecodeRFSettings 低 3 位 = 信道-1，bit4..6 = 功率码
func DecodeRFSettings(b byte) (RFSettings, error) {
	code := int(b&0x70) >> 4
	dbm, ok := powerTable[code]
	if !ok {
		return RFSettings{}, fmt.Errorf("%w: unknown power code %d", ErrDecode, code)
	}
	return RFSettings{
		Channel:   int(b&0x07) + 1,
		PowerCode: code,
		PowerDBm:  dbm,
	}, nil
}

// ParseRFSettings 解析 0x78 应答
func ParseRFSettings(data []byte) (RFSettings, error) {
	if err := need(data, 6); err != nil {
		return RFSettings{}, err
	}
	return DecodeRFSettings(data[5])
}

// ParseCalibrationConst data[5] 指针，data[6..7] 值
func ParseCalibrationConst(data []byte) (CalibrationConst, error) {
	if err := need(data, 8); err != nil {
		return CalibrationConst{}, err
	}
	ptr := int(data[5])
	raw := binary.LittleEndian.Uint16(data[6:8])
	value := int(raw)
	if signedPointer(ptr) {
		value = int(int16(raw))
	}
	return CalibrationConst{Pointer: ptr, Value: value}, nil
}

// ParseServiceParameters 两路电压 ×0.1，温度为有符号字节
func ParseServiceParameters(data []byte) (ServiceParameters, error) {
	if err := need(data, 8); err != nil {
		return ServiceParameters{}, err
	}
	return ServiceParameters{
		SupercapVoltage: float64(data[5]) * 0.1,
		SupplyVoltage:   float64(data[6]) * 0.1,
		Temperature:     int(int8(data[7])),
	}, nil
}

// ParseMeasuredValues 平均周期未结束时设备回 7 字节短帧，返回 nil
func ParseMeasuredValues(data []byte) (*MeasuredValues, error) {
	if len(data) == NotReadyFrameLen {
		return nil, nil
	}
	if err := need(data, 25); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	return &MeasuredValues{
		ActivePower:   float64(int32(le.Uint32(data[5:9]))) * 0.1,
		ReactivePower: float64(int32(le.Uint32(data[9:13]))) * 0.1, // 4 字节字段，按 int32 解码
		RMSVoltage:    int(le.Uint16(data[13:15])),
		RMSCurrent:    float64(int32(le.Uint32(data[15:19]))) * 0.0001,
		Frequency:     float64(int16(le.Uint16(data[23:25]))) * 0.01,
	}, nil
}
