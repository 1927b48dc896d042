package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rim384/internal/config"
	"github.com/taoyao-code/rim384/internal/logging"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// gsmHeaderLen CR LF + 6 个编码字节（序号、地址 3、操作码、count）
const gsmHeaderLen = 14

// ErrSequenceMismatch 应答序号与请求不一致
var ErrSequenceMismatch = fmt.Errorf("%w: response belongs to another request", rim384.ErrSequence)

// GSM 经调制解调器数据呼叫透传的链路
// 帧格式: CR LF | tetrad(seq | request) | CR LF
type GSM struct {
	open   Opener
	link   cfgpkg.LinkConfig
	logger *zap.Logger
	sleep  func(time.Duration)
	now    func() time.Time

	mu   sync.Mutex
	port Port
	seq  byte
}

// NewGSM 创建 GSM 链路；未配置的超时取默认值
func NewGSM(open Opener, link cfgpkg.LinkConfig, logger *zap.Logger) *GSM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if link.SetupTimeout <= 0 {
		link.SetupTimeout = 10 * time.Second
	}
	if link.DialTimeout <= 0 {
		link.DialTimeout = 30 * time.Second
	}
	if link.HangupTimeout <= 0 {
		link.HangupTimeout = 10 * time.Second
	}
	if link.GuardTime <= 0 {
		link.GuardTime = 1500 * time.Millisecond
	}
	if link.PollInterval <= 0 {
		link.PollInterval = 100 * time.Millisecond
	}
	return &GSM{
		open:   open,
		link:   link,
		logger: logger,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

func (t *GSM) modem() *modem {
	return &modem{port: t.port, poll: t.link.PollInterval, sleep: t.sleep, now: t.now, logger: t.logger}
}

// Start 打开串口，设置承载类型并拨号，直到 CONNECT
func (t *GSM) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := t.open()
	if err != nil {
		return err
	}
	t.port = p

	m := t.modem()
	err = m.command(ctx, cmdBearer, atOK, t.link.SetupTimeout)
	if err == nil {
		t.logger.Info("dialing device", zap.String("phone", t.link.Phone))
		err = m.command(ctx, cmdDial+t.link.Phone+atCRLF, atConnect, t.link.DialTimeout)
	}
	if err != nil {
		_ = t.port.Close()
		t.port = nil
		return err
	}
	t.logger.Info("gsm link started")
	return nil
}

// Stop 保护时间后发送 +++ 回到命令态，挂机并关闭串口
func (t *GSM) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}

	m := t.modem()
	ctx := context.Background()
	t.sleep(t.link.GuardTime)
	escErr := m.command(ctx, cmdEscape, atOK, t.link.HangupTimeout)
	t.sleep(t.link.GuardTime)
	hangErr := m.command(ctx, cmdHangup, "", 0)
	closeErr := t.port.Close()
	t.port = nil
	t.logger.Info("gsm link stopped")
	return errors.Join(escErr, hangErr, closeErr)
}

func (t *GSM) Close() error { return t.Stop() }

func (t *GSM) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Send 请求前加序号并编码；应答解码后校验并去掉序号，成功后序号加一
func (t *GSM) Send(ctx context.Context, frame []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packet := make([]byte, 0, len(frame)+1)
	packet = append(packet, t.seq)
	packet = append(packet, frame...)
	if err := writeAll(t.port, wrapCRLF(EncodeTetrad(packet))); err != nil {
		return nil, err
	}
	t.logger.Debug("gsm tx", zap.Uint8("seq", t.seq), logging.Frame("frame", frame))

	header, err := readFull(t.port, gsmHeaderLen)
	if err != nil {
		return nil, err
	}
	count, err := DecodeTetrad(header[gsmHeaderLen-2:])
	if err != nil {
		return nil, err
	}
	dataLen := int(count[0])*2 + 2
	if dataLen <= 5 {
		return nil, ErrIncompletePacket
	}
	body, err := readFull(t.port, dataLen)
	if err != nil {
		return nil, err
	}

	decoded, err := DecodeTetrad(stripCRLF(append(header, body...)))
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 || decoded[0] != t.seq {
		return nil, ErrSequenceMismatch
	}
	resp := decoded[1:]
	t.logger.Debug("gsm rx", zap.Uint8("seq", t.seq), logging.Frame("frame", resp))
	t.seq++
	return resp, nil
}
