// Package calibration 从 YAML 文件加载校准常数并写入设备
package calibration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/rim384/internal/protocol/rim384"
)

// Device 写校准所需的设备能力
type Device interface {
	EnterWritePassword(ctx context.Context, password string) error
	WriteCalibrationConst(ctx context.Context, ptr, value int) error
	WriteCalibrationDate(ctx context.Context, date time.Time) error
}

// Constant 一条校准常数
type Constant struct {
	Pointer int `yaml:"pointer"`
	Value   int `yaml:"value"`
}

// Profile 校准配置文件
//
//	password: "123456"
//	date: 2024-03-01
//	constants:
//	  - {pointer: 0, value: 1000}
type Profile struct {
	Password  string     `yaml:"password"`
	Date      string     `yaml:"date"`
	Constants []Constant `yaml:"constants"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// LoadProfile 读取并校验配置文件
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration profile: %w", err)
	}
	return ParseProfile(raw)
}

// ParseProfile 解析 YAML 内容
func ParseProfile(raw []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse calibration profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParsedDate 未设置日期时 ok 为 false
func (p *Profile) ParsedDate() (t time.Time, ok bool, err error) {
	if p.Date == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range dateLayouts {
		if t, err = time.Parse(layout, p.Date); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: calibration date %q", rim384.ErrValidation, p.Date)
}

// Validate 在任何 I/O 之前检查全部常数与日期
func (p *Profile) Validate() error {
	var errs []error
	if _, err := rim384.EncodePassword(p.Password); err != nil {
		errs = append(errs, err)
	}
	for i, c := range p.Constants {
		if err := rim384.ValidateCalibrationConst(c.Pointer, c.Value); err != nil {
			errs = append(errs, fmt.Errorf("constants[%d]: %w", i, err))
		}
	}
	if date, ok, err := p.ParsedDate(); err != nil {
		errs = append(errs, err)
	} else if ok {
		if _, err := rim384.EncodeCalibrationDate(date); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply 依次输入写口令、写常数、写日期；遇错即停
func (p *Profile) Apply(ctx context.Context, dev Device, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Password != "" {
		if err := dev.EnterWritePassword(ctx, p.Password); err != nil {
			return err
		}
	}
	for _, c := range p.Constants {
		if err := dev.WriteCalibrationConst(ctx, c.Pointer, c.Value); err != nil {
			return fmt.Errorf("pointer %d: %w", c.Pointer, err)
		}
		logger.Info("calibration constant written", zap.Int("pointer", c.Pointer), zap.Int("value", c.Value))
	}
	date, ok, _ := p.ParsedDate()
	if ok {
		if err := dev.WriteCalibrationDate(ctx, date); err != nil {
			return err
		}
		logger.Info("calibration date written", zap.Time("date", date))
	}
	return nil
}
