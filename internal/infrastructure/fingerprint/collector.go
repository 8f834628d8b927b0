// Package fingerprint derives device information from request metadata
// carried on the context.
package fingerprint

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// ErrNoClientHints is returned when the context carries no request metadata.
var ErrNoClientHints = errors.New("fingerprint: no client hints on context")

// ClientHints is the request metadata a collector works from.
type ClientHints struct {
	DeviceID  string
	UserAgent string
}

type clientHintsKey struct{}

// WithClientHints attaches request metadata to ctx.
func WithClientHints(ctx context.Context, h ClientHints) context.Context {
	return context.WithValue(ctx, clientHintsKey{}, h)
}

// ClientHintsFromContext returns the metadata attached by WithClientHints.
func ClientHintsFromContext(ctx context.Context) (ClientHints, bool) {
	h, ok := ctx.Value(clientHintsKey{}).(ClientHints)
	return h, ok
}

// UserAgentCollector implements port.FingerprintCollector by parsing the
// User-Agent header. Without a client-supplied device ID it derives a
// stable one from the user agent.
type UserAgentCollector struct{}

var _ port.FingerprintCollector = UserAgentCollector{}

// Collect implements port.FingerprintCollector.
func (UserAgentCollector) Collect(ctx context.Context) (model.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.DeviceInfo{}, err
	}
	h, ok := ClientHintsFromContext(ctx)
	if !ok || (h.UserAgent == "" && h.DeviceID == "") {
		return model.DeviceInfo{}, ErrNoClientHints
	}

	ua := h.UserAgent
	info := model.DeviceInfo{
		DeviceID:   h.DeviceID,
		DeviceType: deviceType(ua),
		OS:         osName(ua),
		Browser:    browserName(ua),
		UserAgent:  ua,
	}
	if info.DeviceID == "" {
		info.DeviceID = "ua-" + strconv.FormatUint(xxhash.Sum64String(ua), 16)
	}
	return info, nil
}

func deviceType(ua string) valueobject.DeviceType {
	l := strings.ToLower(ua)
	switch {
	case l == "":
		return valueobject.DeviceUnknown
	case containsAny(l, "smart-tv", "smarttv", "tizen", "webos", "roku", "playstation", "xbox", "crkey"):
		return valueobject.DeviceIoT
	case containsAny(l, "ipad", "tablet") || (strings.Contains(l, "android") && !strings.Contains(l, "mobile")):
		return valueobject.DeviceTablet
	case containsAny(l, "iphone", "ipod", "mobile", "windows phone"):
		return valueobject.DeviceMobile
	case containsAny(l, "windows", "macintosh", "mac os x", "x11", "linux", "cros"):
		return valueobject.DeviceDesktop
	default:
		return valueobject.DeviceUnknown
	}
}

func osName(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case containsAny(l, "iphone", "ipad", "ipod"):
		return "iOS"
	case strings.Contains(l, "android"):
		return "Android"
	case strings.Contains(l, "windows"):
		return "Windows"
	case strings.Contains(l, "cros"):
		return "ChromeOS"
	case containsAny(l, "macintosh", "mac os x"):
		return "macOS"
	case strings.Contains(l, "linux"):
		return "Linux"
	default:
		return ""
	}
}

// browserName checks tokens in precedence order: most Chromium derivatives
// also advertise "Chrome" and "Safari".
func browserName(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "edg/"):
		return "Edge"
	case containsAny(l, "opr/", "opera"):
		return "Opera"
	case containsAny(l, "firefox/", "fxios/"):
		return "Firefox"
	case containsAny(l, "chrome/", "crios/"):
		return "Chrome"
	case strings.Contains(l, "safari/"):
		return "Safari"
	default:
		return ""
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
