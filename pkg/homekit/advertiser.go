package homekit

import (
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the HAP port announced when none is configured.
	DefaultPort = 51826
)

// AdvertiserConfig configures mDNS announcements.
type AdvertiserConfig struct {
	// Port is announced in the SRV record. Zero means DefaultPort.
	Port int

	// Interface restricts announcements to one interface. Empty means all.
	Interface string

	// TTL overrides the record TTL. Zero keeps the zeroconf default.
	TTL time.Duration
}

// Advertiser announces a controller's bridge as a _hap._tcp service.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
	txt    []string
}

// NewAdvertiser creates an idle advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	return &Advertiser{config: config}
}

func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise announces c, replacing any earlier announcement. Call it again
// after pairing or accessory changes to publish the new TXT records; it
// does nothing when the records are unchanged.
func (a *Advertiser) Advertise(c *Controller) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	txt := c.TXTRecords()
	if a.server != nil && slices.Equal(a.txt, txt) {
		return nil
	}
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(c.Name(), ServiceType, Domain, a.config.Port, txt, a.interfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}
	a.server = server
	a.txt = txt
	return nil
}

// Active reports whether an announcement is running.
func (a *Advertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the announcement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.txt = nil
	}
}
