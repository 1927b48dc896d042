package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

func TestDeviceAnswersWithValidFrames(t *testing.T) {
	d := New(44922)
	require.NoError(t, d.Start(context.Background()))

	tests := []struct {
		op   byte
		body []byte
		size int
	}{
		{rim384.OpVersion, nil, rim384.VersionFrameLen},
		{rim384.OpUptime, nil, rim384.UptimeFrameLen},
		{rim384.OpElectrical, []byte{0}, rim384.ElectricalFrameLen},
		{rim384.OpMeasuredValues, nil, rim384.MeasuredFrameLen},
		{rim384.OpRFSignalLevel, nil, rim384.RFSignalFrameLen},
		{rim384.OpRFSettings, nil, rim384.RFSettingsFrameLen},
		{rim384.OpServiceParams, nil, rim384.ServiceParamsFrameLen},
		{rim384.OpReadCalibDate, nil, rim384.CalibDateFrameLen},
		{rim384.OpReadCalibConst, []byte{3}, rim384.CalibConstFrameLen},
	}
	for _, tt := range tests {
		req := rim384.NewRequest(44922, tt.op, tt.body...)
		resp, err := d.Send(context.Background(), req)
		require.NoError(t, err)
		assert.NoError(t, rim384.ValidateResponse(req, resp, true, tt.size), "opcode 0x%02X", tt.op)
	}
	assert.Equal(t, len(tests), d.Requests())
}

func TestDeviceWriteRequiresPassword(t *testing.T) {
	d := New(1)
	d.WritePassword = "111111"
	require.NoError(t, d.Start(context.Background()))

	req := rim384.NewRequest(1, rim384.OpWriteRFSettings, 0x00)
	resp, err := d.Send(context.Background(), req)
	require.NoError(t, err)
	assert.ErrorIs(t, rim384.ValidateResponse(req, resp, true, rim384.AckFrameLen), rim384.ErrDevice)

	pw, _ := rim384.EncodePassword("111111")
	_, err = d.Send(context.Background(), rim384.NewRequest(1, rim384.OpWritePassword, pw...))
	require.NoError(t, err)
	resp, err = d.Send(context.Background(), req)
	require.NoError(t, err)
	assert.NoError(t, rim384.ValidateResponse(req, resp, true, rim384.AckFrameLen))
	assert.Equal(t, byte(0x00), d.RF)
}

func TestDeviceFaultIsOneShot(t *testing.T) {
	d := New(1)
	require.NoError(t, d.Start(context.Background()))
	req := rim384.NewRequest(1, rim384.OpUptime)

	d.Inject(FaultChecksum)
	resp, err := d.Send(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, rim384.VerifyChecksum(resp))

	resp, err = d.Send(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, rim384.VerifyChecksum(resp))
}

func TestDeviceStopped(t *testing.T) {
	d := New(1)
	_, err := d.Send(context.Background(), rim384.NewRequest(1, rim384.OpUptime))
	assert.Error(t, err)
}

func TestDeviceRejectsShortPayload(t *testing.T) {
	d := New(1)
	require.NoError(t, d.Start(context.Background()))
	for _, op := range []byte{
		rim384.OpElectrical,
		rim384.OpReadCalibConst,
		rim384.OpWriteCalibConst,
		rim384.OpWriteCalibDate,
		rim384.OpWriteRFSettings,
	} {
		req := rim384.NewRequest(1, op)
		resp, err := d.Send(context.Background(), req)
		require.NoError(t, err, "opcode 0x%02X", op)
		var de *rim384.DeviceError
		require.ErrorAs(t, rim384.ValidateResponse(req, resp, true, rim384.AckFrameLen), &de, "opcode 0x%02X", op)
		assert.Equal(t, StatusBadParameter, de.Code)
	}
}
