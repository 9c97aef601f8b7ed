package detect

import "fmt"

// DeviceType tags an audio output endpoint.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceBuiltinSpeaker
	DeviceLineOut
	DeviceHDMI
	DeviceWiredHeadphones
	DeviceWiredHeadset
	DeviceUSBHeadset
	DeviceBluetoothA2DP
	DeviceBluetoothSCO
	DeviceBLEHeadset
)

// Category is the connectivity class a DeviceType contributes to.
type Category int

const (
	CategoryUnrelated Category = iota
	CategoryWired
	CategoryWireless
)

var categories = map[DeviceType]Category{
	DeviceWiredHeadphones: CategoryWired,
	DeviceWiredHeadset:    CategoryWired,
	DeviceUSBHeadset:      CategoryWired,
	DeviceBluetoothA2DP:   CategoryWireless,
	DeviceBluetoothSCO:    CategoryWireless,
	DeviceBLEHeadset:      CategoryWireless,
}

// Category classifies t. Types missing from the table are unrelated.
func (t DeviceType) Category() Category {
	return categories[t]
}

var deviceNames = map[DeviceType]string{
	DeviceUnknown:         "TYPE_UNKNOWN",
	DeviceBuiltinSpeaker:  "TYPE_BUILTIN_SPEAKER",
	DeviceLineOut:         "TYPE_LINE_ANALOG",
	DeviceHDMI:            "TYPE_HDMI",
	DeviceWiredHeadphones: "TYPE_WIRED_HEADPHONES",
	DeviceWiredHeadset:    "TYPE_WIRED_HEADSET",
	DeviceUSBHeadset:      "TYPE_USB_HEADSET",
	DeviceBluetoothA2DP:   "TYPE_BLUETOOTH_A2DP",
	DeviceBluetoothSCO:    "TYPE_BLUETOOTH_SCO",
	DeviceBLEHeadset:      "TYPE_BLE_HEADSET",
}

func (t DeviceType) String() string {
	if s, ok := deviceNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TYPE_UNKNOWN_%d", int(t))
}

func (c Category) String() string {
	switch c {
	case CategoryWired:
		return "wired"
	case CategoryWireless:
		return "wireless"
	default:
		return "unrelated"
	}
}
