package command

import (
	"context"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// RF 射频接口
type RF struct {
	s Sender
}

// ReadSignalLevel 0x6B
func (c *RF) ReadSignalLevel(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpRFSignalLevel)
	return exchange(ctx, c.s, req, true, rim384.RFSignalFrameLen)
}

// ReadSettings 0x78
func (c *RF) ReadSettings(ctx context.Context, addr rim384.Address) ([]byte, error) {
	req := rim384.NewRequest(addr, rim384.OpRFSettings)
	return exchange(ctx, c.s, req, true, rim384.RFSettingsFrameLen)
}

// WriteSettings 0x79，channel 1..8，powerCode 0..7
func (c *RF) WriteSettings(ctx context.Context, addr rim384.Address, channel, powerCode int) ([]byte, error) {
	b, err := rim384.EncodeRFSettings(channel, powerCode)
	if err != nil {
		return nil, err
	}
	req := rim384.NewRequest(addr, rim384.OpWriteRFSettings, b)
	return exchange(ctx, c.s, req, true, rim384.AckFrameLen)
}
