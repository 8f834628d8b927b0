package model

import "github.com/bibbank/loginrisk/internal/domain/valueobject"

// DeviceInfo describes the device behind a login attempt. It is produced once
// per request by the fingerprint step and passed by value afterwards.
type DeviceInfo struct {
	DeviceID   string                 `json:"device_id"`
	DeviceType valueobject.DeviceType `json:"device_type"`
	OS         string                 `json:"os,omitempty"`
	Browser    string                 `json:"browser,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
}

// EffectiveType returns the device type, treating an empty value as unknown.
func (d DeviceInfo) EffectiveType() valueobject.DeviceType {
	return valueobject.ParseDeviceType(string(d.DeviceType))
}
