package harness

import (
	"time"

	"github.com/mcuadros/go-defaults"

	"github.com/hapkit/hap-go/pkg/log"
)

// Config configures a Harness. Zero fields take the values of their
// default tags.
type Config struct {
	// RealTime drives timers from the wall clock instead of a virtual
	// clock advanced by the test.
	RealTime bool

	// StartTime is the initial virtual time. Zero means clock.DefaultStart.
	StartTime time.Time

	// Seed seeds the network simulator's packet loss draws.
	Seed uint64 `default:"1"`

	// RegistrationTimeout is used by WaitForRegistration when called with
	// a zero timeout.
	RegistrationTimeout time.Duration `default:"5s"`

	// PluginName and PlatformName identify the platform under test.
	PluginName   string `default:"homebridge-test"`
	PlatformName string `default:"TestPlatform"`

	// BridgeName is the model name of the simulated bridge.
	BridgeName string `default:"hap-go Bridge"`

	// ControllerID fixes the controller identity. Empty means random.
	ControllerID string

	// CachePath enables the accessory cache. Cached accessories are
	// restored before launch and saved on shutdown.
	CachePath string

	// Logger receives harness and component logs. Nil means no logging.
	Logger log.Logger

	// Hooks observe the lifecycle.
	Hooks Hooks
}

// withDefaults returns a copy of cfg with defaults applied.
func (cfg Config) withDefaults() Config {
	defaults.SetDefaults(&cfg)
	cfg.Logger = log.OrNop(cfg.Logger)
	return cfg
}

// Hooks are optional lifecycle callbacks. They run synchronously on the
// goroutine that triggered them.
type Hooks struct {
	OnRegister   func(acc Registration)
	OnUnregister func(acc Registration)
	OnLaunch     func()
	OnShutdown   func()
}
