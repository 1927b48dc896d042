package transport

import (
	"fmt"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

const hexDigits = "0123456789ABCDEF"

// EncodeTetrad 每个字节编码为两个 ASCII 十六进制字符，低半字节在前
func EncodeTetrad(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		out[i*2] = hexDigits[b&0x0F]
		out[i*2+1] = hexDigits[b>>4]
	}
	return out
}

// DecodeTetrad EncodeTetrad 的逆变换，大小写均可；长度必须为偶数
func DecodeTetrad(data []byte) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: tetrad stream has odd length %d", rim384.ErrFraming, len(data))
	}
	out := make([]byte, len(data)/2)
	for i := range out {
		lo, err := nibble(data[i*2])
		if err != nil {
			return nil, err
		}
		hi, err := nibble(data[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func nibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	}
	return 0, fmt.Errorf("%w: invalid hex character 0x%02X", rim384.ErrFraming, c)
}

func wrapCRLF(b []byte) []byte {
	out := make([]byte, 0, len(b)+4)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	return append(out, '\r', '\n')
}

func stripCRLF(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != '\r' && c != '\n' {
			out = append(out, c)
		}
	}
	return out
}
