package calibration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/rim384/internal/driver"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
	"github.com/taoyao-code/rim384/internal/simulator"
)

const sample = `
password: "123456"
date: 2024-03-01
constants:
  - pointer: 1
    value: -120
  - pointer: 11
    value: 1000
`

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "123456", p.Password)
	assert.Equal(t, []Constant{{Pointer: 1, Value: -120}, {Pointer: 11, Value: 1000}}, p.Constants)

	date, ok, err := p.ParsedDate()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), date)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestParseProfileRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"signed out of range", "constants: [{pointer: 3, value: 40000}]"},
		{"pointer 11 gap", "constants: [{pointer: 11, value: 100}]"},
		{"unknown pointer", "constants: [{pointer: 12, value: 0}]"},
		{"reserved non zero", "constants: [{pointer: 255, value: 1}]"},
		{"bad date", "date: yesterday"},
		{"date before epoch", "date: 1999-12-31"},
		{"long password", "password: \"1234567\""},
		{"bad yaml", "constants: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestApplyWritesDevice(t *testing.T) {
	sim := simulator.New(44922)
	sim.WritePassword = "123456"
	d, err := driver.New(sim, 44922)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	p, err := ParseProfile([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, p.Apply(context.Background(), d, nil))

	v, err := d.ReadCalibrationConst(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, -120, v)
	v, err = d.ReadCalibrationConst(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 1000, v)

	date, err := d.ReadCalibrationDate(context.Background())
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestApplyWrongPasswordStops(t *testing.T) {
	sim := simulator.New(44922)
	sim.WritePassword = "secret"
	d, err := driver.New(sim, 44922)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	p, err := ParseProfile([]byte(sample))
	require.NoError(t, err)
	err = p.Apply(context.Background(), d, nil)
	assert.ErrorIs(t, err, rim384.ErrDevice)
	assert.Equal(t, 1, sim.Requests())
}

func TestApplyInvalidDoesNoIO(t *testing.T) {
	sim := simulator.New(44922)
	d, err := driver.New(sim, 44922)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	p := &Profile{Constants: []Constant{{Pointer: 4, Value: 256}}}
	assert.ErrorIs(t, p.Apply(context.Background(), d, nil), rim384.ErrValidation)
	assert.Equal(t, 0, sim.Requests())
}
