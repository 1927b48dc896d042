package rim384

// VersionAndType 固件版本与设备类型
type VersionAndType struct {
	Version float64 `json:"version"`
	Type    string  `json:"type"`
}

// ElectricalParam 电参数类型（0x27 命令的参数字节）
type ElectricalParam byte

const (
	ParamActivePower   ElectricalParam = 0 // 有功功率 A 相, W
	ParamReactivePower ElectricalParam = 1 // 无功功率, var
	ParamLineVoltage   ElectricalParam = 4 // 线电压 UAB
	ParamCurrent       ElectricalParam = 5 // 电流 IA
	ParamFrequency     ElectricalParam = 6 // 频率, Hz
)

// Valid 仅 0、1、4、5、6 有效
func (p ElectricalParam) Valid() bool {
	switch p {
	case ParamActivePower, ParamReactivePower, ParamLineVoltage, ParamCurrent, ParamFrequency:
		return true
	}
	return false
}

// ElectricalIndicators 电参数读数，nil 表示设备无数据（原始值 -1）
type ElectricalIndicators struct {
	SettingsType int    `json:"settings_type"`
	Total        *int32 `json:"total"`
	PhaseA       *int32 `json:"phase_a"`
	PhaseB       *int32 `json:"phase_b"`
	PhaseC       *int32 `json:"phase_c"`
}

// RFSettings 射频设置
type RFSettings struct {
	Channel   int     `json:"channel"`
	PowerCode int     `json:"power_code"`
	PowerDBm  float64 `json:"power_dbm"`
}

// ServiceParameters 服务参数
type ServiceParameters struct {
	SupercapVoltage float64 `json:"supercap_voltage"`
	SupplyVoltage   float64 `json:"supply_voltage"`
	Temperature     int     `json:"temperature"`
}

// MeasuredValues 平均周期内的测量值
type MeasuredValues struct {
	ActivePower   float64 `json:"active_power"`
	ReactivePower float64 `json:"reactive_power"`
	RMSVoltage    int     `json:"rms_voltage"`
	RMSCurrent    float64 `json:"rms_current"`
	Frequency     float64 `json:"frequency"`
}

// CalibrationConst 校准常数
type CalibrationConst struct {
	Pointer int `json:"pointer"`
	Value   int `json:"value"`
}
