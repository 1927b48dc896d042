package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/logging"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// RS485 直连链路：原样写出请求，读 5 字节头部后再按 count 读余下字节
type RS485 struct {
	open   Opener
	logger *zap.Logger

	mu   sync.Mutex
	port Port
}

// NewRS485 创建 RS-485 链路
func NewRS485(open Opener, logger *zap.Logger) *RS485 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RS485{open: open, logger: logger}
}

func (t *RS485) Start(ctx context.Context) error {
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
	t.logger.Info("rs485 link started")
	return nil
}

func (t *RS485) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.logger.Info("rs485 link stopped")
	return err
}

func (t *RS485) Close() error { return t.Stop() }

func (t *RS485) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *RS485) Send(ctx context.Context, frame []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := t.port.Flush(); err != nil {
		t.logger.Debug("rs485 flush failed", zap.Error(err))
	}
	if err := writeAll(t.port, frame); err != nil {
		return nil, err
	}
	t.logger.Debug("rs485 tx", logging.Frame("frame", frame))

	header, err := readFull(t.port, rim384.HeaderLen)
	if err != nil {
		return nil, err
	}
	count := int(header[4])
	if count <= 1 {
		return nil, ErrIncompletePacket
	}
	body, err := readFull(t.port, count)
	if err != nil {
		return nil, err
	}
	resp := append(header, body...)
	t.logger.Debug("rs485 rx", logging.Frame("frame", resp))
	return resp, nil
}
