package valueobject

// DeviceType classifies the device a login attempt originates from.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceIoT     DeviceType = "iot"
	DeviceUnknown DeviceType = "unknown"
)

// ParseDeviceType normalizes free-form input; anything unrecognized is unknown.
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(s) {
	case DeviceDesktop, DeviceMobile, DeviceTablet, DeviceIoT:
		return DeviceType(s)
	default:
		return DeviceUnknown
	}
}
