package command

import (
	"context"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Info 设备类型、版本与运行时间
type Info struct {
	s Sender
}

// ReadVersion 0x00
func (c *Info) ReadVersion(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpVersion)
	return exchange(ctx, c.s, req, true, rim384.VersionFrameLen)
}

// ReadUptime 0x01
func (c *Info) ReadUptime(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpUptime)
	return exchange(ctx, c.s, req, true, rim384.UptimeFrameLen)
}
