package pipeline

import (
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// DeterministicFingerprint replaces the fingerprint collector with a pure
// mapping, for reproducible runs.
type DeterministicFingerprint struct {
	DeviceID     string `json:"device_id"`
	UserAgent    string `json:"user_agent"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
}

// DeviceInfo maps the screen dimensions onto a device type.
func (f DeterministicFingerprint) DeviceInfo() model.DeviceInfo {
	return model.DeviceInfo{
		DeviceID:   f.DeviceID,
		DeviceType: deviceTypeForScreen(f.ScreenWidth, f.ScreenHeight),
		UserAgent:  f.UserAgent,
	}
}

func deviceTypeForScreen(width, height int) valueobject.DeviceType {
	switch {
	case width <= 768 && height <= 1024:
		return valueobject.DeviceMobile
	case width >= 600 && height >= 800:
		return valueobject.DeviceTablet
	default:
		return valueobject.DeviceDesktop
	}
}
