package homekit

import (
	"fmt"
	"strconv"

	"github.com/brutella/hap/accessory"
)

// ServiceType is the DNS-SD service type HomeKit accessories announce.
const ServiceType = "_hap._tcp"

// Protocol version advertised in the "pv" record.
const protocolVersion = "1.1"

// TXTRecords returns the DNS-SD TXT records of the simulated bridge.
// "sf" is 1 while unpaired and 0 once paired.
func (c *Controller) TXTRecords() []string {
	c.mu.RLock()
	configNumber := c.configNumber
	paired := c.paired
	c.mu.RUnlock()

	sf := "1"
	if paired {
		sf = "0"
	}

	return []string{
		"c#=" + strconv.Itoa(configNumber),
		"ff=0",
		"id=" + c.DeviceID(),
		"md=" + c.name,
		"pv=" + protocolVersion,
		"s#=1",
		"sf=" + sf,
		fmt.Sprintf("ci=%d", accessory.TypeBridge),
	}
}
