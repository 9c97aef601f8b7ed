package detect

import (
	"errors"
	"log/slog"
)

// Platform is the host's audio and Bluetooth query surface.
//
// SupportsRouteEnumeration reports whether OutputDevices gives a precise
// per-route list. When it does not, the collector falls back to the coarse
// ScoActive/A2dpActive flags and cannot tell whether anything is wired.
type Platform interface {
	BluetoothEnabled() (bool, error)
	SupportsRouteEnumeration() bool
	OutputDevices() ([]DeviceType, error)
	ScoActive() (bool, error)
	A2dpActive() (bool, error)
}

// Collector computes a Record from the current state of a Platform.
type Collector struct {
	platform Platform
	log      *slog.Logger
}

func NewCollector(p Platform, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{platform: p, log: log}
}

// Compute queries the platform and returns a fresh record. It never fails:
// anything the platform cannot answer counts as false.
func (c *Collector) Compute() Record {
	var rec Record
	if c.platform == nil {
		return rec
	}

	radio := c.flag("bluetooth radio", c.platform.BluetoothEnabled)
	c.log.Debug("bluetooth adapter state", "enabled", radio)

	if !c.platform.SupportsRouteEnumeration() {
		sco := c.flag("sco active", c.platform.ScoActive)
		a2dp := c.flag("a2dp active", c.platform.A2dpActive)
		rec.Bluetooth = radio && (sco || a2dp)
		c.log.Debug("legacy bluetooth check", "sco", sco, "a2dp", a2dp, "bluetooth", rec.Bluetooth)
		return rec
	}

	devices, err := c.platform.OutputDevices()
	if err != nil {
		c.logQueryError("output devices", err)
		devices = nil
	}
	c.log.Debug("enumerated output devices", "count", len(devices))

	for _, d := range devices {
		cat := d.Category()
		c.log.Debug("checking device", "type", d, "category", cat)
		switch cat {
		case CategoryWired:
			rec.AudioJack = true
		case CategoryWireless:
			if radio {
				rec.Bluetooth = true
			}
		}
	}

	c.log.Debug("computed connectivity", "audioJack", rec.AudioJack, "bluetooth", rec.Bluetooth)
	return rec
}

func (c *Collector) flag(name string, fn func() (bool, error)) bool {
	v, err := fn()
	if err != nil {
		c.logQueryError(name, err)
		return false
	}
	return v
}

func (c *Collector) logQueryError(what string, err error) {
	if errors.Is(err, ErrUnsupported) {
		c.log.Debug("query unsupported", "query", what)
		return
	}
	c.log.Warn("query failed", "query", what, "err", err)
}
