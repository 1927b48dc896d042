package rim384

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionAndType(t *testing.T) {
	// 版本 1.05，类型 РиМ 384.01
	resp := makeResponse(44922, OpVersion, 0x05, 0x01, 0x01, 0x84, 0x03)
	vt, err := ParseVersionAndType(resp)
	require.NoError(t, err)
	assert.InDelta(t, 1.05, vt.Version, 1e-9)
	assert.Equal(t, "РиМ 384.01", vt.Type)
}

func TestParseVersionAndTypeKeepsInnerZeros(t *testing.T) {
	resp := makeResponse(1, OpVersion, 0x00, 0x12, 0x00, 0x05, 0x00)
	vt, err := ParseVersionAndType(resp)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, vt.Version, 1e-9)
	assert.Equal(t, "РиМ 05.00", vt.Type)
}

func TestParseVersionAndTypeRejectsNonBCD(t *testing.T) {
	resp := makeResponse(1, OpVersion, 0x0A, 0x01, 0x01, 0x84, 0x03)
	_, err := ParseVersionAndType(resp)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestParseElectricalIndicatorsAbsentFields(t *testing.T) {
	payload := make([]byte, 17)
	payload[0] = 0x04
	binary.LittleEndian.PutUint32(payload[1:], uint32(23015))
	binary.LittleEndian.PutUint32(payload[5:], math.MaxUint32) // -1
	binary.LittleEndian.PutUint32(payload[9:], uint32(0))
	neg := int32(-250)
	binary.LittleEndian.PutUint32(payload[13:], uint32(neg))

	resp := makeResponse(1, OpElectrical, payload...)
	require.Len(t, resp, ElectricalFrameLen)
	ei, err := ParseElectricalIndicators(resp)
	require.NoError(t, err)
	assert.Equal(t, 4, ei.SettingsType)
	require.NotNil(t, ei.Total)
	assert.Equal(t, int32(23015), *ei.Total)
	assert.Nil(t, ei.PhaseA)
	require.NotNil(t, ei.PhaseB)
	assert.Equal(t, int32(0), *ei.PhaseB)
	require.NotNil(t, ei.PhaseC)
	assert.Equal(t, int32(-250), *ei.PhaseC)
}

func TestRFSettingsRoundTrip(t *testing.T) {
	expected := []float64{7.8, -15, -10, -5, 0, 5, 7, 10}
	for ch := MinRFChannel; ch <= MaxRFChannel; ch++ {
		for code := 0; code <= MaxPowerCode; code++ {
			b, err := EncodeRFSettings(ch, code)
			require.NoError(t, err)
			s, err := ParseRFSettings(makeResponse(1, OpRFSettings, b))
			require.NoError(t, err)
			assert.Equal(t, ch, s.Channel)
			assert.Equal(t, code, s.PowerCode)
			assert.Equal(t, expected[code], s.PowerDBm)
		}
	}
}

func TestEncodeRFSettingsRange(t *testing.T) {
	_, err := EncodeRFSettings(0, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = EncodeRFSettings(9, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = EncodeRFSettings(1, 8)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = EncodeRFSettings(1, -1)
	assert.ErrorIs(t, err, ErrValidation)

	b, err := EncodeRFSettings(3, 5)
	require.NoError(t, err)
	assert.Equal(t, byte(0x52), b)
}

func TestParseMeasuredValuesNotReady(t *testing.T) {
	resp := makeResponse(1, OpMeasuredValues)
	require.Len(t, resp, NotReadyFrameLen)
	mv, err := ParseMeasuredValues(resp)
	require.NoError(t, err)
	assert.Nil(t, mv)
}

func TestParseMeasuredValues(t *testing.T) {
	payload := make([]byte, 20)
	le := binary.LittleEndian
	le.PutUint32(payload[0:], uint32(12345)) // 1234.5 W
	reactive := int32(-78)
	le.PutUint32(payload[4:], uint32(reactive)) // -7.8 var
	le.PutUint16(payload[8:], 231)
	le.PutUint32(payload[10:], uint32(53400)) // 5.34 A
	le.PutUint16(payload[18:], 5002)          // 50.02 Hz

	resp := makeResponse(1, OpMeasuredValues, payload...)
	require.Len(t, resp, MeasuredFrameLen)
	mv, err := ParseMeasuredValues(resp)
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.InDelta(t, 1234.5, mv.ActivePower, 1e-6)
	assert.InDelta(t, -7.8, mv.ReactivePower, 1e-6)
	assert.Equal(t, 231, mv.RMSVoltage)
	assert.InDelta(t, 5.34, mv.RMSCurrent, 1e-6)
	assert.InDelta(t, 50.02, mv.Frequency, 1e-6)
}

// 无功功率占 4 字节，超出 16 位范围的值不能被截断
func TestParseMeasuredReactiveUsesFullWord(t *testing.T) {
	payload := make([]byte, 20)
	reactive := int32(-40000)
	binary.LittleEndian.PutUint32(payload[4:], uint32(reactive))

	mv, err := ParseMeasuredValues(makeResponse(1, OpMeasuredValues, payload...))
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.InDelta(t, -4000.0, mv.ReactivePower, 1e-6)
}

func TestParseCalibrationConstSignedness(t *testing.T) {
	c, err := ParseCalibrationConst(makeResponse(1, OpReadCalibConst, 0x03, 0xFE, 0xFF))
	require.NoError(t, err)
	assert.Equal(t, CalibrationConst{Pointer: 3, Value: -2}, c)

	c, err = ParseCalibrationConst(makeResponse(1, OpReadCalibConst, 0x02, 0xFE, 0xFF))
	require.NoError(t, err)
	assert.Equal(t, CalibrationConst{Pointer: 2, Value: 65534}, c)
}

func TestParseServiceParameters(t *testing.T) {
	sp, err := ParseServiceParameters(makeResponse(1, OpServiceParams, 52, 120, 0xF6))
	require.NoError(t, err)
	assert.InDelta(t, 5.2, sp.SupercapVoltage, 1e-9)
	assert.InDelta(t, 12.0, sp.SupplyVoltage, 1e-9)
	assert.Equal(t, -10, sp.Temperature)
}

func TestParseSerialNumberAndSignal(t *testing.T) {
	sn, err := ParseSerialNumber(makeResponse(0, OpSerialNumber, 0x7B, 0x00, 0x00))
	require.NoError(t, err)
	assert.Equal(t, Address(123), sn)

	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw, math.Float32bits(-71.5))
	lvl, err := ParseRFSignalLevel(makeResponse(1, OpRFSignalLevel, raw...))
	require.NoError(t, err)
	assert.Equal(t, float32(-71.5), lvl)
}

func TestParseCalibrationDate(t *testing.T) {
	want := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	payload, err := EncodeCalibrationDate(want)
	require.NoError(t, err)
	got, err := ParseCalibrationDate(makeResponse(1, OpReadCalibDate, payload...))
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestParseShortFrame(t *testing.T) {
	_, err := ParseElectricalIndicators([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDecode)
}
