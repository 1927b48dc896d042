// Package command 按功能分组构造请求帧、经链路发送并校验应答
package command

import (
	"context"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Sender 一次请求/应答交换
type Sender interface {
	Send(ctx context.Context, frame []byte) ([]byte, error)
}

type exchangeKey struct{}

// WithExchange 在 ctx 上挂接 ex；命令发出后 ex 记录请求与应答原始字节
func WithExchange(ctx context.Context, ex *rim384.Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

// ExchangeFrom 取出 ctx 上挂接的 Exchange，没有时返回 nil
func ExchangeFrom(ctx context.Context) *rim384.Exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*rim384.Exchange)
	return ex
}

func record(ctx context.Context, req, resp []byte) {
	if ex := ExchangeFrom(ctx); ex != nil {
		ex.Request = req
		ex.Response = resp
	}
}

// exchange 发送请求并按 ValidateResponse 校验，返回完整应答帧
func exchange(ctx context.Context, s Sender, req []byte, checkAddress bool, successLens ...int) ([]byte, error) {
	resp, err := s.Send(ctx, req)
	record(ctx, req, resp)
	if err != nil {
		return nil, err
	}
	if err := rim384.ValidateResponse(req, resp, checkAddress, successLens...); err != nil {
		return nil, err
	}
	return resp, nil
}

// Set 全部命令组
type Set struct {
	Info        *Info
	Password    *Password
	Service     *Service
	RF          *RF
	Calibration *Calibration
}

// NewSet 所有命令组共用同一链路
func NewSet(s Sender) *Set {
	return &Set{
		Info:        &Info{s: s},
		Password:    &Password{s: s},
		Service:     &Service{s: s},
		RF:          &RF{s: s},
		Calibration: &Calibration{s: s},
	}
}
