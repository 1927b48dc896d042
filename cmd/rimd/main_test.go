package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rim384/internal/config"
	"github.com/taoyao-code/rim384/internal/driver"
	"github.com/taoyao-code/rim384/internal/simulator"
)

func TestNewTransport(t *testing.T) {
	cfg := &cfgpkg.Config{Device: cfgpkg.DeviceConfig{Address: 44922, WritePassword: "123456"}}

	cfg.Link.Mode = cfgpkg.LinkSim
	link, err := newTransport(cfg, zap.NewNop())
	require.NoError(t, err)
	sim, ok := link.(*simulator.Device)
	require.True(t, ok)
	assert.Equal(t, "123456", sim.WritePassword)

	cfg.Link.Mode = cfgpkg.LinkRS485
	link, err = newTransport(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, link.Started())

	cfg.Link.Mode = cfgpkg.LinkGSM
	link, err = newTransport(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, link)

	cfg.Link.Mode = "tcp"
	_, err = newTransport(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestSimulatedDeviceRoundTrip(t *testing.T) {
	cfg := &cfgpkg.Config{Device: cfgpkg.DeviceConfig{Address: 44922}}
	cfg.Link.Mode = cfgpkg.LinkSim
	link, err := newTransport(cfg, zap.NewNop())
	require.NoError(t, err)

	dev, err := driver.New(link, cfg.Device.Address)
	require.NoError(t, err)
	require.NoError(t, dev.Start(context.Background()))
	defer dev.Close()

	vt, err := dev.ReadVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "РиМ 384.01", vt.Type)
}
