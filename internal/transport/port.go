package transport

import (
	"fmt"
	"io"
	"strings"

	"github.com/tarm/serial"

	cfgpkg "github.com/taoyao-code/rim384/internal/config"
)

// Port 已打开的串口
type Port interface {
	io.ReadWriteCloser
	// Flush 丢弃收发缓冲中尚未处理的数据
	Flush() error
}

// Opener 打开串口；Start 时调用
type Opener func() (Port, error)

// SerialOpener 基于 tarm/serial 的串口打开器
func SerialOpener(cfg cfgpkg.SerialConfig) Opener {
	return func() (Port, error) {
		sc, err := serialConfig(cfg)
		if err != nil {
			return nil, err
		}
		p, err := serial.OpenPort(sc)
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
		}
		return p, nil
	}
}

func serialConfig(cfg cfgpkg.SerialConfig) (*serial.Config, error) {
	sc := &serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        byte(cfg.DataBits),
	}
	switch strings.ToUpper(cfg.Parity) {
	case "", "N", "NONE":
		sc.Parity = serial.ParityNone
	case "E", "EVEN":
		sc.Parity = serial.ParityEven
	case "O", "ODD":
		sc.Parity = serial.ParityOdd
	case "M", "MARK":
		sc.Parity = serial.ParityMark
	case "S", "SPACE":
		sc.Parity = serial.ParitySpace
	default:
		return nil, fmt.Errorf("serial: unknown parity %q", cfg.Parity)
	}
	switch cfg.StopBits {
	case 0, 1:
		sc.StopBits = serial.Stop1
	case 2:
		sc.StopBits = serial.Stop2
	default:
		return nil, fmt.Errorf("serial: unsupported stop bits %d", cfg.StopBits)
	}
	return sc, nil
}
