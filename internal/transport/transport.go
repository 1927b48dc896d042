// Package transport 负责与设备之间的帧收发：RS-485 直连与 GSM 透传两种链路
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

var (
	ErrNotStarted       = errors.New("transport not started")
	ErrIncompletePacket = fmt.Errorf("%w: incomplete packet", rim384.ErrFraming)
	ErrEndOfStream      = fmt.Errorf("%w: %w", rim384.ErrFraming, io.ErrUnexpectedEOF)
)

// Transport 发送一帧请求并读回一帧完整应答
type Transport interface {
	// Start 打开链路，已打开时不做任何事
	Start(ctx context.Context) error
	// Stop 关闭链路，已关闭时不做任何事
	Stop() error
	Send(ctx context.Context, frame []byte) ([]byte, error)
	Started() bool
	io.Closer
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("write: %w", io.ErrShortWrite)
		}
		b = b[n:]
	}
	return nil
}

// readFull 读满 n 字节；读到 0 字节（超时或 EOF）视为流意外结束
func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	pos := 0
	for pos < n {
		m, err := r.Read(buf[pos:])
		pos += m
		if pos >= n {
			break
		}
		if m == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: got %d of %d bytes", ErrEndOfStream, pos, n)
			}
			return nil, fmt.Errorf("read: %w", err)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read: %w", err)
		}
	}
	return buf, nil
}
