package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 链路类型
const (
	LinkRS485 = "rs485"
	LinkGSM   = "gsm"
	LinkSim   = "sim" // 内存模拟设备，用于联调
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// SerialConfig 串口参数
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	DataBits    int           `mapstructure:"dataBits"`
	Parity      string        `mapstructure:"parity"` // N/E/O/M/S
	StopBits    int           `mapstructure:"stopBits"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// LinkConfig 链路配置；gsm 模式下经调制解调器拨号透传
type LinkConfig struct {
	Mode          string        `mapstructure:"mode"`
	Phone         string        `mapstructure:"phone"`
	SetupTimeout  time.Duration `mapstructure:"setupTimeout"`
	DialTimeout   time.Duration `mapstructure:"dialTimeout"`
	HangupTimeout time.Duration `mapstructure:"hangupTimeout"`
	GuardTime     time.Duration `mapstructure:"guardTime"`
	PollInterval  time.Duration `mapstructure:"pollInterval"`
}

// DeviceConfig 设备地址与口令
type DeviceConfig struct {
	Address       int64  `mapstructure:"address"`
	ReadPassword  string `mapstructure:"readPassword"`
	WritePassword string `mapstructure:"writePassword"`
}

// PollConfig 周期采集
type PollConfig struct {
	Enable           bool          `mapstructure:"enable"`
	Interval         time.Duration `mapstructure:"interval"`
	RatePerSec       float64       `mapstructure:"ratePerSec"`
	Burst            int           `mapstructure:"burst"`
	ElectricalParams []int         `mapstructure:"electricalParams"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	APIKeys      []string      `mapstructure:"apiKeys"` // 为空时写接口不鉴权
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// MQTTConfig 遥测发布
type MQTTConfig struct {
	Enable      bool          `mapstructure:"enable"`
	Broker      string        `mapstructure:"broker"`
	ClientID    string        `mapstructure:"clientId"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topicPrefix"`
	QoS         byte          `mapstructure:"qos"`
	Retain      bool          `mapstructure:"retain"`
	KeepAlive   time.Duration `mapstructure:"keepAlive"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CalibrationConfig 启动时应用的校准配置文件
type CalibrationConfig struct {
	Profile string `mapstructure:"profile"`
}

// Config 顶层配置结构
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Serial      SerialConfig      `mapstructure:"serial"`
	Link        LinkConfig        `mapstructure:"link"`
	Device      DeviceConfig      `mapstructure:"device"`
	Poll        PollConfig        `mapstructure:"poll"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 RIM_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 RIM_，并将点号替换为下划线
	v.SetEnvPrefix("RIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查链路相关的必填项
func (c *Config) Validate() error {
	switch c.Link.Mode {
	case LinkRS485, LinkSim:
	case LinkGSM:
		if c.Link.Phone == "" {
			return errors.New("config: link.phone is required in gsm mode")
		}
	default:
		return fmt.Errorf("config: unknown link.mode %q", c.Link.Mode)
	}
	if c.Link.Mode != LinkSim && c.Serial.Port == "" {
		return errors.New("config: serial.port is required")
	}
	if c.Device.Address < 0 || c.Device.Address > 0xFFFFFF {
		return fmt.Errorf("config: device.address %d out of range", c.Device.Address)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rimd")
	v.SetDefault("app.env", "dev")

	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 57600)
	v.SetDefault("serial.dataBits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stopBits", 1)
	v.SetDefault("serial.readTimeout", "2s")

	// 无默认值的键也要登记，否则仅由环境变量提供时 Unmarshal 看不到
	v.SetDefault("link.mode", LinkRS485)
	v.SetDefault("link.phone", "")
	v.SetDefault("link.setupTimeout", "10s")
	v.SetDefault("link.dialTimeout", "30s")
	v.SetDefault("link.hangupTimeout", "10s")
	v.SetDefault("link.guardTime", "1500ms")
	v.SetDefault("link.pollInterval", "100ms")

	v.SetDefault("device.address", 44922)
	v.SetDefault("device.readPassword", "")
	v.SetDefault("device.writePassword", "")

	v.SetDefault("poll.enable", true)
	v.SetDefault("poll.interval", "30s")
	v.SetDefault("poll.ratePerSec", 2)
	v.SetDefault("poll.burst", 1)
	v.SetDefault("poll.electricalParams", []int{0, 4, 5, 6})

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "30s")
	v.SetDefault("http.apiKeys", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/rimd.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientId", "rimd")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topicPrefix", "rim384")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.keepAlive", "60s")
	v.SetDefault("mqtt.timeout", "5s")

	v.SetDefault("calibration.profile", "")
}
