package main

import (
	"errors"
	"log/slog"

	"github.com/mil-ad/hpdetect/detect"
)

type routeSource interface {
	routes() ([]detect.DeviceType, error)
}

// hostPlatform answers detect.Platform queries from BlueZ, jack switches
// and sysfs sound cards. bz is nil when BlueZ is not available.
type hostPlatform struct {
	bz    *bluez
	wired []routeSource
	log   *slog.Logger
}

func (p *hostPlatform) BluetoothEnabled() (bool, error) {
	if p.bz == nil {
		return false, detect.ErrUnsupported
	}
	return p.bz.adapterPowered()
}

// SupportsRouteEnumeration is false only for BlueZ 4, which has no
// per-device profile list to classify.
func (p *hostPlatform) SupportsRouteEnumeration() bool {
	return p.bz == nil || !p.bz.legacy
}

// OutputDevices merges every route source. A failing source is logged and
// skipped so the rest still count.
func (p *hostPlatform) OutputDevices() ([]detect.DeviceType, error) {
	var out []detect.DeviceType
	for _, src := range p.wired {
		routes, err := src.routes()
		if err != nil {
			p.logSourceError(err)
			continue
		}
		out = append(out, routes...)
	}
	if p.bz != nil {
		routes, err := p.bz.audioRoutes()
		if err != nil {
			p.logSourceError(err)
		} else {
			out = append(out, routes...)
		}
	}
	return out, nil
}

func (p *hostPlatform) ScoActive() (bool, error) {
	if p.bz == nil || !p.bz.legacy {
		return false, detect.ErrUnsupported
	}
	return p.bz.scoActive()
}

func (p *hostPlatform) A2dpActive() (bool, error) {
	if p.bz == nil || !p.bz.legacy {
		return false, detect.ErrUnsupported
	}
	return p.bz.a2dpActive()
}

func (p *hostPlatform) logSourceError(err error) {
	if errors.Is(err, detect.ErrUnsupported) {
		p.log.Debug("route source unsupported")
		return
	}
	p.log.Warn("route source failed", "err", err)
}
