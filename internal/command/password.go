package command

import (
	"context"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Password 口令命令；写类命令前需输入写口令
type Password struct {
	s Sender
}

// EnterWrite 0x02
func (c *Password) EnterWrite(ctx context.Context, addr rim384.Address, password string) ([]byte, error) {
	return c.enter(ctx, addr, rim384.OpWritePassword, password)
}

// EnterRead 0x04
func (c *Password) EnterRead(ctx context.Context, addr rim384.Address, password string) ([]byte, error) {
	return c.enter(ctx, addr, rim384.OpReadPassword, password)
}

func (c *Password) enter(ctx context.Context, addr rim384.Address, op byte, password string) ([]byte, error) {
	payload, err := rim384.EncodePassword(password)
	if err != nil {
		return nil, err
	}
	req := rim384.NewRequest(addr, op, payload...)
	return exchange(ctx, c.s, req, true, rim384.AckFrameLen)
}
