package transport

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// fakePort 内存串口：onWrite 根据写入内容追加待读数据
type fakePort struct {
	mu      sync.Mutex
	rx      bytes.Buffer
	tx      bytes.Buffer
	chunk   int // 单次 Read 最多返回的字节数，0 不限制
	onWrite func(p []byte) []byte
	closed  bool
	flushes int
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rx.Len() == 0 {
		return 0, io.EOF
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.rx.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tx.Write(p)
	if f.onWrite != nil {
		f.rx.Write(f.onWrite(append([]byte(nil), p...)))
	}
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePort) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakePort) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tx.String()
}

func openerFor(p *fakePort) (Opener, *int) {
	opened := 0
	return func() (Port, error) {
		opened++
		return p, nil
	}, &opened
}

// fakeClock sleep 推进时间
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) sleep(d time.Duration) {
	c.t = c.t.Add(d)
}
