package rim384

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCalibrationConst(t *testing.T) {
	tests := []struct {
		name  string
		ptr   int
		value int
		ok    bool
	}{
		{"指针1超范围", 1, 40000, false},
		{"指针1负数", 1, -32768, true},
		{"指针11最大值", 11, 65535, true},
		{"指针11过小", 11, 100, false},
		{"指针11区间内", 11, 200, true},
		{"指针11区间外", 11, 5001, false},
		{"指针4超范围", 4, 300, false},
		{"指针4上限", 4, 255, true},
		{"指针12未定义", 12, 0, false},
		{"指针0无符号", 0, 65535, true},
		{"指针0负数", 0, -1, false},
		{"指针254为0", 254, 0, true},
		{"指针254非0", 254, 1, false},
		{"指针255非0", 255, 7, false},
		{"负指针", -1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCalibrationConst(tt.ptr, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestValidateReadPointer(t *testing.T) {
	assert.NoError(t, ValidateReadPointer(0))
	assert.NoError(t, ValidateReadPointer(11))
	assert.ErrorIs(t, ValidateReadPointer(12), ErrValidation)
	assert.ErrorIs(t, ValidateReadPointer(254), ErrValidation)
}

func TestEncodeCalibrationConst(t *testing.T) {
	b, err := EncodeCalibrationConst(1, -2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xFE, 0xFF}, b)

	b, err = EncodeCalibrationConst(11, 1000)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B, 0xE8, 0x03}, b)
}

func TestEncodePassword(t *testing.T) {
	b, err := EncodePassword("123")
	require.NoError(t, err)
	assert.Equal(t, []byte{'1', '2', '3', 0, 0, 0}, b)

	_, err = EncodePassword("1234567")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEncodeCalibrationDate(t *testing.T) {
	b, err := EncodeCalibrationDate(CalibrationEpoch.Add(86400 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x51, 0x01, 0x00}, b)

	_, err = EncodeCalibrationDate(time.Date(1999, time.December, 31, 23, 59, 59, 0, time.UTC))
	assert.ErrorIs(t, err, ErrValidation)
}
