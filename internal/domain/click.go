package domain

import (
	"strings"
	"time"
)

type DeviceClass string

const (
	DeviceClassDesktop DeviceClass = "desktop"
	DeviceClassMobile  DeviceClass = "mobile"
	DeviceClassTablet  DeviceClass = "tablet"
	DeviceClassBot     DeviceClass = "bot"
)

// Click is one attributed visit. Rows are append-only; Converted is the only
// field ever flipped, when the click's attribution window produces an order.
type Click struct {
	ClickID     string      `json:"click_id"`
	AffiliateID string      `json:"affiliate_id"`
	TargetRef   string      `json:"target_ref,omitempty"`
	ClientIP    string      `json:"client_ip"`
	UserAgent   string      `json:"user_agent"`
	Device      DeviceClass `json:"device"`
	Converted   bool        `json:"converted"`
	CreatedAt   time.Time   `json:"created_at"`
}

// DeriveDeviceClass buckets a user agent into a coarse device class for
// affiliate analytics. It intentionally stays heuristic; attribution never
// depends on it.
func DeriveDeviceClass(userAgent string) DeviceClass {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return DeviceClassBot
	case strings.Contains(ua, "bot"), strings.Contains(ua, "crawler"), strings.Contains(ua, "spider"):
		return DeviceClassBot
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return DeviceClassTablet
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"), strings.Contains(ua, "android"):
		return DeviceClassMobile
	default:
		return DeviceClassDesktop
	}
}
