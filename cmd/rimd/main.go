package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/rim384/internal/api"
	"github.com/taoyao-code/rim384/internal/calibration"
	cfgpkg "github.com/taoyao-code/rim384/internal/config"
	"github.com/taoyao-code/rim384/internal/driver"
	"github.com/taoyao-code/rim384/internal/health"
	"github.com/taoyao-code/rim384/internal/httpserver"
	"github.com/taoyao-code/rim384/internal/logging"
	"github.com/taoyao-code/rim384/internal/metrics"
	"github.com/taoyao-code/rim384/internal/poller"
	"github.com/taoyao-code/rim384/internal/protocol/rim384"
	"github.com/taoyao-code/rim384/internal/simulator"
	"github.com/taoyao-code/rim384/internal/telemetry"
	"github.com/taoyao-code/rim384/internal/transport"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "config file (default: $RIM_CONFIG or configs/example.yaml)")
	once := pflag.Bool("once", false, "read device info and measurements once, print JSON and exit")
	pflag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 指标
	reg := metrics.NewRegistry()
	dm := metrics.NewDriverMetrics(reg)

	// 4) 链路与驱动
	link, err := newTransport(cfg, log)
	if err != nil {
		log.Fatal("create transport", zap.Error(err))
	}
	dev, err := driver.New(link, cfg.Device.Address, driver.WithLogger(log), driver.WithMetrics(dm))
	if err != nil {
		log.Fatal("create driver", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dev.Start(ctx); err != nil {
		log.Fatal("start link", zap.Error(err), zap.String("mode", cfg.Link.Mode))
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn("stop link", zap.Error(err))
		}
	}()
	log.Info("link started", zap.String("mode", cfg.Link.Mode), zap.Uint32("address", uint32(dev.Address())))

	if cfg.Device.ReadPassword != "" {
		if err := dev.EnterReadPassword(ctx, cfg.Device.ReadPassword); err != nil {
			log.Warn("enter read password", zap.Error(err))
		}
	}

	if *once {
		if err := dumpOnce(ctx, dev, cfg); err != nil {
			log.Error("read device", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	// 5) 校准配置
	if cfg.Calibration.Profile != "" {
		profile, err := calibration.LoadProfile(cfg.Calibration.Profile)
		if err != nil {
			log.Fatal("load calibration profile", zap.Error(err))
		}
		if profile.Password == "" {
			profile.Password = cfg.Device.WritePassword
		}
		if err := profile.Apply(ctx, dev, log); err != nil {
			log.Fatal("apply calibration profile", zap.Error(err))
		}
	}

	// 6) MQTT 遥测
	var sink poller.Sink
	var pub *telemetry.Publisher
	if cfg.MQTT.Enable {
		pub = telemetry.New(cfg.MQTT, nil, log, dm)
		if err := pub.Connect(ctx); err != nil {
			log.Error("mqtt connect", zap.Error(err))
		}
		sink = pub
	}

	// 7) 周期采集
	var wg sync.WaitGroup
	var latest func() (poller.Snapshot, bool)
	agg := health.NewAggregator(health.NewLinkChecker(dev))
	if cfg.Poll.Enable {
		p, err := poller.New(dev, sink, cfg.Poll, log, dm)
		if err != nil {
			log.Fatal("create poller", zap.Error(err))
		}
		latest = p.Latest
		agg.AddChecker(health.NewPollChecker(p.Latest, 3*cfg.Poll.Interval))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("poller stopped", zap.Error(err))
			}
		}()
	}

	// 8) HTTP
	metricsHandler := metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	handler := api.NewDeviceHandler(dev, latest, log)
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, agg.Ready,
		func(r *gin.Engine) { health.RegisterHTTPRoutes(r, agg) },
		func(r *gin.Engine) { api.RegisterDeviceRoutes(r, handler, cfg.HTTP.APIKeys, log) },
	)
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()
	log.Info("http listening", zap.String("addr", cfg.HTTP.Addr))

	// 信号处理，优雅关闭
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	wg.Wait()
	if pub != nil {
		pub.Close()
	}
}

// newTransport 按 link.mode 选择链路
func newTransport(cfg *cfgpkg.Config, log *zap.Logger) (transport.Transport, error) {
	switch cfg.Link.Mode {
	case cfgpkg.LinkRS485:
		return transport.NewRS485(transport.SerialOpener(cfg.Serial), log), nil
	case cfgpkg.LinkGSM:
		return transport.NewGSM(transport.SerialOpener(cfg.Serial), cfg.Link, log), nil
	case cfgpkg.LinkSim:
		addr, err := rim384.NewAddress(cfg.Device.Address)
		if err != nil {
			return nil, err
		}
		sim := simulator.New(addr)
		sim.WritePassword = cfg.Device.WritePassword
		return sim, nil
	}
	return nil, fmt.Errorf("unknown link mode %q", cfg.Link.Mode)
}

// dumpOnce 读取一次设备信息与测量值并输出 JSON
func dumpOnce(ctx context.Context, dev *driver.Driver, cfg *cfgpkg.Config) error {
	out := map[string]any{"address": uint32(dev.Address())}

	vt, err := dev.ReadVersion(ctx)
	if err != nil {
		return err
	}
	out["version"] = vt

	uptime, err := dev.ReadUptime(ctx)
	if err != nil {
		return err
	}
	out["uptime_seconds"] = uptime

	p, err := poller.New(dev, nil, cfg.Poll, nil, nil)
	if err != nil {
		return err
	}
	snap, err := p.PollOnce(ctx)
	if err != nil {
		return err
	}
	out["snapshot"] = snap

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
