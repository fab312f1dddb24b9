// Command hap-sim runs a simulated HomeKit bridge from a fixture file.
//
// The bridge runs on virtual time behind a simulated network. An
// interactive shell reads and writes characteristics as a controller
// would, injects latency, packet loss and disconnects, and moves time
// forward.
//
// Usage:
//
//	hap-sim [flags]
//
// Flags:
//
//	-fixture string     Fixture file describing the accessories
//	-cache string       Accessory cache file (restored on start, saved on exit)
//	-name string        Bridge name (default: fixture name or "hap-go Bridge")
//	-seed uint          Packet loss seed (default 1)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-log-file string    Also write JSON log lines to this file
//	-advertise          Announce the bridge as _hap._tcp via mDNS
//	-port int           Port announced with -advertise (default 51826)
//
// Examples:
//
//	# Explore a fixture
//	hap-sim -fixture testdata/living_room.yaml
//
//	# Keep state between runs and announce the bridge on the LAN
//	hap-sim -fixture living_room.yaml -cache /tmp/hap-sim.cbor -advertise
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hapkit/hap-go/cmd/hap-sim/interactive"
	"github.com/hapkit/hap-go/pkg/cache"
	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/fixture"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/homekit"
	"github.com/hapkit/hap-go/pkg/log"
	"github.com/hapkit/hap-go/pkg/netsim"
)

// Config holds the command configuration.
type Config struct {
	Fixture   string
	CachePath string
	Name      string
	Seed      uint64
	LogLevel  string
	LogFile   string
	Advertise bool
	Port      int
}

var config Config

func init() {
	flag.StringVar(&config.Fixture, "fixture", "", "Fixture file describing the accessories")
	flag.StringVar(&config.CachePath, "cache", "", "Accessory cache file (restored on start, saved on exit)")
	flag.StringVar(&config.Name, "name", "", "Bridge name (default: fixture name or \""+homekit.DefaultName+"\")")
	flag.Uint64Var(&config.Seed, "seed", 1, "Packet loss seed")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.LogFile, "log-file", "", "Also write JSON log lines to this file")
	flag.BoolVar(&config.Advertise, "advertise", false, "Announce the bridge as _hap._tcp via mDNS")
	flag.IntVar(&config.Port, "port", homekit.DefaultPort, "Port announced with -advertise")
}

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)

	if err := run(config, logger); err != nil {
		logger.Fatal(err)
	}
}

func run(cfg Config, logger *logrus.Logger) error {
	accs, name, err := loadAccessories(cfg)
	if err != nil {
		return err
	}
	if cfg.Name != "" {
		name = cfg.Name
	}

	l, closeLog, err := newLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	clk := clock.NewVirtual(clock.DefaultStart)
	network := netsim.New(netsim.WithClock(clk), netsim.WithSeed(cfg.Seed), netsim.WithLogger(l))
	hk := homekit.New(
		homekit.WithName(name),
		homekit.WithClock(clk),
		homekit.WithGate(network),
		homekit.WithLogger(l),
	)
	for _, acc := range accs {
		if err := hk.AddAccessory(acc); err != nil {
			return err
		}
	}
	logger.WithFields(logrus.Fields{"name": hk.Name(), "accessories": hk.Count()}).Info("bridge ready")

	env := interactive.Env{HomeKit: hk, Clock: clk, Network: network, CachePath: cfg.CachePath}
	if cfg.Advertise {
		adv := homekit.NewAdvertiser(homekit.AdvertiserConfig{Port: cfg.Port})
		if err := adv.Advertise(hk); err != nil {
			return err
		}
		defer adv.Stop()
		env.Advertiser = adv
		logger.WithFields(logrus.Fields{"service": homekit.ServiceType, "port": cfg.Port}).Info("advertising bridge")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := interactive.New(env, os.Stdout)
	logger.SetOutput(sim.Stdout())
	go func() {
		if err := sim.Run(ctx, cancel); err != nil {
			logger.Error(err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Infof("Received signal: %v", sig)
	case <-ctx.Done():
	}

	if cfg.CachePath != "" {
		if err := cache.Save(cfg.CachePath, hk.Accessories()); err != nil {
			return fmt.Errorf("save accessory cache: %w", err)
		}
		logger.WithField("path", cfg.CachePath).Info("accessory cache saved")
	}
	return nil
}

// newLogger returns the component logger. With a log file configured,
// messages also go to the file as JSON at the console's level.
func newLogger(cfg Config, console *logrus.Logger) (log.Logger, func(), error) {
	if cfg.LogFile == "" {
		return log.NewLogrus(console), func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	file := logrus.New()
	file.SetFormatter(&logrus.JSONFormatter{})
	file.SetLevel(console.GetLevel())
	file.SetOutput(f)

	return log.NewMultiLogger(log.NewLogrus(console), log.NewLogrus(file)), func() { _ = f.Close() }, nil
}

// loadAccessories returns the cached accessories when the cache holds any,
// otherwise the fixture's.
func loadAccessories(cfg Config) ([]*hap.Accessory, string, error) {
	var name string
	var accs []*hap.Accessory

	if cfg.Fixture != "" {
		f, err := fixture.Load(cfg.Fixture)
		if err != nil {
			return nil, "", err
		}
		if accs, err = f.Build(); err != nil {
			return nil, "", err
		}
		name = f.Name
	}

	if cfg.CachePath != "" {
		cached, err := cache.Load(cfg.CachePath)
		if err != nil {
			return nil, "", fmt.Errorf("load accessory cache: %w", err)
		}
		if len(cached) > 0 {
			accs = cached
		}
	}

	if len(accs) == 0 {
		return nil, "", errors.New("no accessories: use -fixture or a non-empty -cache")
	}
	return accs, name, nil
}
