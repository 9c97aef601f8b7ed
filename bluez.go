package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/mil-ad/hpdetect/detect"
)

const (
	busName         = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	transportIface  = "org.bluez.MediaTransport1"
	propsIface      = "org.freedesktop.DBus.Properties"
	propsSignal     = "org.freedesktop.DBus.Properties.PropertiesChanged"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	ifacesAdded     = objManagerIface + ".InterfacesAdded"
	ifacesRemoved   = objManagerIface + ".InterfacesRemoved"

	// BlueZ 4 interfaces, used when the daemon has no ObjectManager.
	legacyManagerIface   = "org.bluez.Manager"
	legacyAdapterIface   = "org.bluez.Adapter"
	legacyDeviceIface    = "org.bluez.Device"
	legacyHeadsetIface   = "org.bluez.Headset"
	legacyAudioSinkIface = "org.bluez.AudioSink"
	legacyPropChanged    = "PropertyChanged"
)

// Profile UUIDs advertised by audio sinks.
const (
	uuidA2DPSink = "0000110b-0000-1000-8000-00805f9b34fb"
	uuidHSP      = "00001108-0000-1000-8000-00805f9b34fb"
	uuidHSPAG    = "00001112-0000-1000-8000-00805f9b34fb"
	uuidHFP      = "0000111e-0000-1000-8000-00805f9b34fb"
	uuidHFPAG    = "0000111f-0000-1000-8000-00805f9b34fb"
	uuidHSPHS    = "00001131-0000-1000-8000-00805f9b34fb"
	uuidASCS     = "0000184e-0000-1000-8000-00805f9b34fb"
	uuidPACS     = "00001850-0000-1000-8000-00805f9b34fb"
)

var profileTypes = map[string]detect.DeviceType{
	uuidA2DPSink: detect.DeviceBluetoothA2DP,
	uuidHSP:      detect.DeviceBluetoothSCO,
	uuidHSPAG:    detect.DeviceBluetoothSCO,
	uuidHFP:      detect.DeviceBluetoothSCO,
	uuidHFPAG:    detect.DeviceBluetoothSCO,
	uuidHSPHS:    detect.DeviceBluetoothSCO,
	uuidASCS:     detect.DeviceBLEHeadset,
	uuidPACS:     detect.DeviceBLEHeadset,
}

// classifyProfiles maps a device's service UUIDs to the audio routes it
// provides. A headset offering both A2DP and HFP yields two routes.
func classifyProfiles(uuids []string) []detect.DeviceType {
	var out []detect.DeviceType
	seen := make(map[detect.DeviceType]bool)
	for _, u := range uuids {
		t, ok := profileTypes[strings.ToLower(u)]
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func isVoiceProfile(uuid string) bool {
	return profileTypes[strings.ToLower(uuid)] == detect.DeviceBluetoothSCO
}

// bluez wraps a system D-Bus connection for BlueZ queries.
type bluez struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath
	legacy  bool
	log     *slog.Logger
}

// newBluez checks that BlueZ is on the bus and decides between the BlueZ 5
// object-manager API and the BlueZ 4 one. mode is "auto", "routes" or
// "legacy".
func newBluez(conn *dbus.Conn, adapter, mode string, log *slog.Logger) (*bluez, error) {
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("org.bluez not found on system bus, is bluetooth.service running?")
	}

	b := &bluez{conn: conn, log: log}
	switch mode {
	case modeRoutes:
		b.legacy = false
	case modeLegacy:
		b.legacy = true
	default:
		b.legacy = !b.hasObjectManager()
	}

	if b.legacy {
		var path dbus.ObjectPath
		err := conn.Object(busName, "/").Call(legacyManagerIface+".FindAdapter", 0, adapter).Store(&path)
		if err != nil {
			return nil, fmt.Errorf("find adapter %s: %w", adapter, err)
		}
		b.adapter = path
	} else {
		b.adapter = dbus.ObjectPath("/org/bluez/" + adapter)
	}
	log.Info("bluez ready", "adapter", b.adapter, "legacy", b.legacy)
	if b.legacy {
		log.Warn("legacy bluez API in use, wired routes are not reported")
	}
	return b, nil
}

func (b *bluez) hasObjectManager() bool {
	var xml string
	err := b.conn.Object(busName, "/").Call("org.freedesktop.DBus.Introspectable.Introspect", 0).Store(&xml)
	if err != nil {
		b.log.Warn("introspect bluez root", "err", err)
		return false
	}
	return strings.Contains(xml, objManagerIface)
}

// --- property helpers ---

func (b *bluez) getProp(path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := b.conn.Object(busName, path)
	var v dbus.Variant
	err := obj.Call(propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (b *bluez) getBool(path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := b.getProp(path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}

func (b *bluez) legacyProps(path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	err := b.conn.Object(busName, path).Call(iface+".GetProperties", 0).Store(&props)
	return props, err
}

func (b *bluez) legacyBool(path dbus.ObjectPath, iface, prop string) (bool, error) {
	props, err := b.legacyProps(path, iface)
	if err != nil {
		return false, err
	}
	val, _ := props[prop].Value().(bool)
	return val, nil
}

// --- adapter ---

func (b *bluez) adapterPowered() (bool, error) {
	if b.legacy {
		return b.legacyBool(b.adapter, legacyAdapterIface, "Powered")
	}
	return b.getBool(b.adapter, adapterIface, "Powered")
}

// --- routes ---

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// audioRoutes lists the audio routes of every connected device on the
// adapter.
func (b *bluez) audioRoutes() ([]detect.DeviceType, error) {
	var objects managedObjects
	err := b.conn.Object(busName, "/").Call(objManagerIface+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return routesFromObjects(objects, b.adapter), nil
}

func routesFromObjects(objects managedObjects, adapter dbus.ObjectPath) []detect.DeviceType {
	var out []detect.DeviceType
	prefix := string(adapter) + "/"
	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		dev, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		connected, _ := dev["Connected"].Value().(bool)
		if !connected {
			continue
		}
		uuids, _ := dev["UUIDs"].Value().([]string)
		out = append(out, classifyProfiles(uuids)...)
	}
	return out
}

// --- BlueZ 4 flags ---

func (b *bluez) legacyDevices() ([]dbus.ObjectPath, error) {
	var paths []dbus.ObjectPath
	err := b.conn.Object(busName, b.adapter).Call(legacyAdapterIface+".ListDevices", 0).Store(&paths)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return paths, nil
}

// anyDevice reports whether prop is true on iface for any paired device.
// Devices that lack the interface are skipped.
func (b *bluez) anyDevice(iface, prop string) (bool, error) {
	paths, err := b.legacyDevices()
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		on, err := b.legacyBool(p, iface, prop)
		if err != nil {
			continue
		}
		if on {
			return true, nil
		}
	}
	return false, nil
}

func (b *bluez) scoActive() (bool, error) {
	return b.anyDevice(legacyHeadsetIface, "Playing")
}

func (b *bluez) a2dpActive() (bool, error) {
	return b.anyDevice(legacyAudioSinkIface, "Connected")
}

// transportUUID returns the profile UUID of a media transport, or "" when
// it cannot be read.
func (b *bluez) transportUUID(path dbus.ObjectPath) string {
	v, err := b.getProp(path, transportIface, "UUID")
	if err != nil {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// --- signal subscription ---

func (b *bluez) matchRules() []string {
	if b.legacy {
		return []string{
			"type='signal',sender='" + busName + "',member='" + legacyPropChanged + "'",
		}
	}
	return []string{
		"type='signal',interface='" + propsIface + "',member='PropertiesChanged',path_namespace='/org/bluez'",
		"type='signal',sender='" + busName + "',interface='" + objManagerIface + "',member='InterfacesAdded'",
		"type='signal',sender='" + busName + "',interface='" + objManagerIface + "',member='InterfacesRemoved'",
	}
}

// signalEvents translates a BlueZ signal into detect events. uuidOf looks
// up a media transport's profile UUID.
func signalEvents(sig *dbus.Signal, adapter dbus.ObjectPath, uuidOf func(dbus.ObjectPath) string) []detect.EventKind {
	switch {
	case sig.Name == propsSignal:
		return propertiesEvents(sig, adapter, uuidOf)
	case sig.Name == ifacesAdded || sig.Name == ifacesRemoved:
		return objectEvents(sig)
	case strings.HasSuffix(sig.Name, "."+legacyPropChanged):
		return legacyEvents(sig, adapter)
	}
	return nil
}

func propertiesEvents(sig *dbus.Signal, adapter dbus.ObjectPath, uuidOf func(dbus.ObjectPath) string) []detect.EventKind {
	// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
	if len(sig.Body) < 2 {
		return nil
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return nil
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil
	}

	switch iface {
	case adapterIface:
		if sig.Path != adapter {
			return nil
		}
		if _, ok := changed["Powered"]; ok {
			return []detect.EventKind{detect.EventRadioStateChanged}
		}
	case deviceIface:
		if !strings.HasPrefix(string(sig.Path), string(adapter)+"/") {
			return nil
		}
		v, ok := changed["Connected"]
		if !ok {
			return nil
		}
		if connected, _ := v.Value().(bool); connected {
			return []detect.EventKind{detect.EventLinkConnected}
		}
		return []detect.EventKind{detect.EventLinkDisconnected}
	case transportIface:
		if _, ok := changed["State"]; !ok {
			return nil
		}
		if isVoiceProfile(uuidOf(sig.Path)) {
			return []detect.EventKind{detect.EventScoAudioStateUpdated}
		}
		return []detect.EventKind{detect.EventConnectionStateChanged}
	}
	return nil
}

func objectEvents(sig *dbus.Signal) []detect.EventKind {
	if len(sig.Body) < 2 {
		return nil
	}
	var ifaces []string
	switch body := sig.Body[1].(type) {
	case map[string]map[string]dbus.Variant:
		for name := range body {
			ifaces = append(ifaces, name)
		}
	case []string:
		ifaces = body
	}
	for _, name := range ifaces {
		if name == transportIface {
			return []detect.EventKind{detect.EventConnectionStateChanged}
		}
	}
	return nil
}

func legacyEvents(sig *dbus.Signal, adapter dbus.ObjectPath) []detect.EventKind {
	// Body: [name string, value Variant]
	if len(sig.Body) < 2 {
		return nil
	}
	prop, _ := sig.Body[0].(string)
	iface := strings.TrimSuffix(sig.Name, "."+legacyPropChanged)

	switch iface {
	case legacyAdapterIface:
		if sig.Path == adapter && prop == "Powered" {
			return []detect.EventKind{detect.EventRadioStateChanged}
		}
	case legacyDeviceIface:
		if prop != "Connected" {
			return nil
		}
		v, _ := sig.Body[1].(dbus.Variant)
		if connected, _ := v.Value().(bool); connected {
			return []detect.EventKind{detect.EventLinkConnected}
		}
		return []detect.EventKind{detect.EventLinkDisconnected}
	case legacyHeadsetIface:
		if prop == "Playing" || prop == "State" {
			return []detect.EventKind{detect.EventScoAudioStateUpdated}
		}
		if prop == "Connected" {
			return []detect.EventKind{detect.EventConnectionStateChanged}
		}
	case legacyAudioSinkIface:
		if prop == "Connected" || prop == "State" {
			return []detect.EventKind{detect.EventConnectionStateChanged}
		}
	}
	return nil
}
