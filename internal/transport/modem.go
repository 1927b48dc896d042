package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AT 命令与结果码
const (
	atCRLF       = "\r\n"
	atOK         = "OK"
	atConnect    = "CONNECT"
	atError      = "ERROR"
	atNoCarrier  = "NO CARRIER"
	atNoDialtone = "NO DIALTONE"
	atBusy       = "BUSY"
	atNoAnswer   = "NO ANSWER"

	cmdBearer = "AT+CBST=0,0,1" + atCRLF // 9600 bps 非透明异步数据承载
	cmdDial   = "ATD"
	cmdEscape = "+++"
	cmdHangup = "ATH" + atCRLF
)

var (
	ErrModem        = errors.New("modem error")
	ErrModemTimeout = errors.New("modem response timeout")
)

// 出现即判定失败的结果码
var atFailures = []string{atError, atNoCarrier, atNoDialtone, atBusy, atNoAnswer}

// modem 在已打开的串口上执行 AT 命令
type modem struct {
	port   Port
	poll   time.Duration
	sleep  func(time.Duration)
	now    func() time.Time
	logger *zap.Logger
}

// command 写出命令；expect 非空时轮询读取，直到累计应答（大写）包含 expect、
// 出现失败结果码或超时
func (m *modem) command(ctx context.Context, cmd, expect string, timeout time.Duration) error {
	if err := writeAll(m.port, []byte(cmd)); err != nil {
		return err
	}
	if expect == "" {
		return nil
	}

	name := strings.TrimSpace(cmd)
	deadline := m.now().Add(timeout)
	var acc strings.Builder
	buf := make([]byte, 256)
	for m.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.sleep(m.poll)

		n, err := m.port.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			reply := strings.ToUpper(acc.String())
			if strings.Contains(reply, strings.ToUpper(expect)) {
				m.logger.Info("modem command ok", zap.String("cmd", name))
				return nil
			}
			for _, code := range atFailures {
				if strings.Contains(reply, code) {
					return fmt.Errorf("%w: %s returned %s", ErrModem, name, code)
				}
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s: %w", ErrModem, name, err)
		}
	}
	return fmt.Errorf("%w: %s, expected %s", ErrModemTimeout, name, expect)
}
