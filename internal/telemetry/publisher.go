// Package telemetry 通过 MQTT 发布采集结果
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/config"
	"github.com/taoyao-code/rim384/internal/metrics"
	"github.com/taoyao-code/rim384/internal/poller"
)

// 在线状态
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ErrNotConnected 未连接 broker
var ErrNotConnected = errors.New("telemetry: not connected")

// Client paho.Client 中用到的部分
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
}

// Publisher 把 Snapshot 拆分到各主题发布
type Publisher struct {
	client  Client
	cfg     config.MQTTConfig
	logger  *zap.Logger
	metrics *metrics.DriverMetrics
}

// NewClientOptions 按配置生成 paho 选项；遗嘱消息把 status 主题置为 offline
func NewClientOptions(cfg config.MQTTConfig, statusTopic string, logger *zap.Logger) *paho.ClientOptions {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(statusTopic, StatusOffline, cfg.QoS, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
		if t := c.Publish(statusTopic, cfg.QoS, true, StatusOnline); t.Wait() && t.Error() != nil {
			logger.Warn("publish online status failed", zap.Error(t.Error()))
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})
	return opts
}

// New 创建发布器；client 为 nil 时按配置创建 paho 客户端
func New(cfg config.MQTTConfig, client Client, logger *zap.Logger, m *metrics.DriverMetrics) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	p := &Publisher{cfg: cfg, logger: logger, metrics: m}
	if client == nil {
		client = paho.NewClient(NewClientOptions(cfg, p.StatusTopic(), logger))
	}
	p.client = client
	return p
}

// StatusTopic <prefix>/status，进程在线状态，与设备地址无关；
// 写序列号后数据主题随新地址变化，状态主题不变
func (p *Publisher) StatusTopic() string {
	return p.cfg.TopicPrefix + "/status"
}

// Topic <prefix>/<address>/<name>
func (p *Publisher) Topic(address uint32, name string) string {
	return fmt.Sprintf("%s/%d/%s", p.cfg.TopicPrefix, address, name)
}

// Connect 连接 broker，直到成功或 ctx 结束
func (p *Publisher) Connect(ctx context.Context) error {
	t := p.client.Connect()
	select {
	case <-t.Done():
		if err := t.Error(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", p.cfg.Broker, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 发布 offline 后断开
func (p *Publisher) Close() {
	if !p.client.IsConnected() {
		return
	}
	if err := p.send(p.StatusTopic(), StatusOffline, true); err != nil {
		p.logger.Warn("publish offline status failed", zap.Error(err))
	}
	p.client.Disconnect(250)
}

// Publish 实现 poller.Sink；测量值未就绪时不发布 measurements
func (p *Publisher) Publish(ctx context.Context, s poller.Snapshot) error {
	if !p.client.IsConnected() {
		p.metrics.ObservePublish("snapshot", "error")
		return ErrNotConnected
	}
	var errs []error
	pub := func(name string, v any) {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := p.publishJSON(p.Topic(s.Address, name), v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if s.Measured != nil {
		pub("measurements", s.Measured)
	}
	for param, ei := range s.Electrical {
		pub("electrical/"+strconv.Itoa(param), ei)
	}
	if s.SignalLevel != nil {
		pub("rf", map[string]float32{"signal_level": *s.SignalLevel})
	}
	if s.Service != nil {
		pub("service", s.Service)
	}
	if len(s.Errors) > 0 {
		pub("errors", s.Errors)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Publisher) publishJSON(topic string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.send(topic, body, p.cfg.Retain)
}

func (p *Publisher) send(topic string, payload any, retain bool) error {
	t := p.client.Publish(topic, p.cfg.QoS, retain, payload)
	var err error
	if !t.WaitTimeout(p.cfg.Timeout) {
		err = fmt.Errorf("publish %s: timeout after %s", topic, p.cfg.Timeout)
	} else {
		err = t.Error()
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.ObservePublish(topic, result)
	if err == nil {
		p.logger.Debug("published", zap.String("topic", topic))
	}
	return err
}
