package main

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/mil-ad/hpdetect/detect"
)

const testAdapter = dbus.ObjectPath("/org/bluez/hci0")

func TestClassifyProfiles(t *testing.T) {
	tests := []struct {
		name  string
		uuids []string
		want  []detect.DeviceType
	}{
		{"a2dp and hfp headset", []string{uuidA2DPSink, uuidHFP, "0000110e-0000-1000-8000-00805f9b34fb"},
			[]detect.DeviceType{detect.DeviceBluetoothA2DP, detect.DeviceBluetoothSCO}},
		{"hsp only, upper case", []string{"00001108-0000-1000-8000-00805F9B34FB"},
			[]detect.DeviceType{detect.DeviceBluetoothSCO}},
		{"le audio", []string{uuidPACS, uuidASCS}, []detect.DeviceType{detect.DeviceBLEHeadset}},
		{"keyboard", []string{"00001124-0000-1000-8000-00805f9b34fb"}, nil},
		{"nothing", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyProfiles(tt.uuids))
		})
	}
}

func TestRoutesFromObjects(t *testing.T) {
	device := func(connected bool, uuids ...string) map[string]map[string]dbus.Variant {
		return map[string]map[string]dbus.Variant{
			deviceIface: {
				"Connected": dbus.MakeVariant(connected),
				"UUIDs":     dbus.MakeVariant(uuids),
			},
		}
	}
	objects := managedObjects{
		"/org/bluez/hci0":                       {adapterIface: {"Powered": dbus.MakeVariant(true)}},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF": device(true, uuidA2DPSink),
		"/org/bluez/hci0/dev_11_22_33_44_55_66": device(false, uuidHFP),
		"/org/bluez/hci1/dev_AA_AA_AA_AA_AA_AA": device(true, uuidHFP),
	}

	assert.Equal(t, []detect.DeviceType{detect.DeviceBluetoothA2DP}, routesFromObjects(objects, testAdapter))
}

func propsChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: propsSignal,
		Body: []interface{}{iface, changed, []string{}},
	}
}

func TestSignalEvents(t *testing.T) {
	voice := func(dbus.ObjectPath) string { return uuidHFPAG }
	music := func(dbus.ObjectPath) string { return uuidA2DPSink }
	dev := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")

	tests := []struct {
		name   string
		sig    *dbus.Signal
		uuidOf func(dbus.ObjectPath) string
		want   []detect.EventKind
	}{
		{
			name: "adapter powered",
			sig:  propsChanged(testAdapter, adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(false)}),
			want: []detect.EventKind{detect.EventRadioStateChanged},
		},
		{
			name: "other adapter",
			sig:  propsChanged("/org/bluez/hci1", adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(false)}),
		},
		{
			name: "adapter discovering",
			sig:  propsChanged(testAdapter, adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)}),
		},
		{
			name: "device connected",
			sig:  propsChanged(dev, deviceIface, map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}),
			want: []detect.EventKind{detect.EventLinkConnected},
		},
		{
			name: "device disconnected",
			sig:  propsChanged(dev, deviceIface, map[string]dbus.Variant{"Connected": dbus.MakeVariant(false)}),
			want: []detect.EventKind{detect.EventLinkDisconnected},
		},
		{
			name: "device rssi",
			sig:  propsChanged(dev, deviceIface, map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-40))}),
		},
		{
			name:   "voice transport state",
			sig:    propsChanged(dev+"/fd0", transportIface, map[string]dbus.Variant{"State": dbus.MakeVariant("active")}),
			uuidOf: voice,
			want:   []detect.EventKind{detect.EventScoAudioStateUpdated},
		},
		{
			name:   "music transport state",
			sig:    propsChanged(dev+"/fd1", transportIface, map[string]dbus.Variant{"State": dbus.MakeVariant("idle")}),
			uuidOf: music,
			want:   []detect.EventKind{detect.EventConnectionStateChanged},
		},
		{
			name: "transport added",
			sig: &dbus.Signal{Name: ifacesAdded, Body: []interface{}{
				dev + "/fd2",
				map[string]map[string]dbus.Variant{transportIface: {}},
			}},
			want: []detect.EventKind{detect.EventConnectionStateChanged},
		},
		{
			name: "transport removed",
			sig:  &dbus.Signal{Name: ifacesRemoved, Body: []interface{}{dev + "/fd2", []string{transportIface}}},
			want: []detect.EventKind{detect.EventConnectionStateChanged},
		},
		{
			name: "device removed",
			sig:  &dbus.Signal{Name: ifacesRemoved, Body: []interface{}{dev, []string{deviceIface}}},
		},
		{
			name: "legacy headset playing",
			sig: &dbus.Signal{Path: "/org/bluez/123/hci0/dev_AA", Name: legacyHeadsetIface + ".PropertyChanged",
				Body: []interface{}{"Playing", dbus.MakeVariant(true)}},
			want: []detect.EventKind{detect.EventScoAudioStateUpdated},
		},
		{
			name: "legacy device connected",
			sig: &dbus.Signal{Path: "/org/bluez/123/hci0/dev_AA", Name: legacyDeviceIface + ".PropertyChanged",
				Body: []interface{}{"Connected", dbus.MakeVariant(true)}},
			want: []detect.EventKind{detect.EventLinkConnected},
		},
		{
			name: "unrelated signal",
			sig:  &dbus.Signal{Name: "org.freedesktop.login1.Manager.PrepareForSleep", Body: []interface{}{true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uuidOf := tt.uuidOf
			if uuidOf == nil {
				uuidOf = func(dbus.ObjectPath) string { return "" }
			}
			assert.Equal(t, tt.want, signalEvents(tt.sig, testAdapter, uuidOf))
		})
	}
}

func TestLegacyAdapterPowered(t *testing.T) {
	adapter := dbus.ObjectPath("/org/bluez/123/hci0")
	sig := &dbus.Signal{Path: adapter, Name: legacyAdapterIface + ".PropertyChanged",
		Body: []interface{}{"Powered", dbus.MakeVariant(true)}}
	assert.Equal(t, []detect.EventKind{detect.EventRadioStateChanged}, signalEvents(sig, adapter, nil))
}
