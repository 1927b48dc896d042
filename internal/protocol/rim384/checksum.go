package rim384

import "github.com/sigurn/crc16"

// ChecksumLen 帧尾校验长度（CRC16，低字节在前）
const ChecksumLen = 2

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC16 Modbus CRC16：初值 0xFFFF，反射多项式 0xA001
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, modbusTable)
}

// AddChecksum 对除最后两个字节外的全部字节计算 CRC，并以小端写入最后两个字节
// 原地修改 frame 并返回
func AddChecksum(frame []byte) []byte {
	if len(frame) < ChecksumLen {
		return frame
	}
	n := len(frame) - ChecksumLen
	crc := CRC16(frame[:n])
	frame[n] = byte(crc)
	frame[n+1] = byte(crc >> 8)
	return frame
}

// VerifyChecksum 校验帧尾两个字节是否为前面数据的 CRC（不返回错误）
func VerifyChecksum(frame []byte) bool {
	if len(frame) < ChecksumLen {
		return false
	}
	n := len(frame) - ChecksumLen
	crc := CRC16(frame[:n])
	return frame[n] == byte(crc) && frame[n+1] == byte(crc>>8)
}
