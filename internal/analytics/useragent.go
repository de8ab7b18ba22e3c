package analytics

import (
	"regexp"
	"strings"
)

var (
	tabletPattern = regexp.MustCompile(`tablet|ipad|playbook|silk`)
	mobilePattern = regexp.MustCompile(`mobile|iphone|ipod|android|blackberry|opera mini|windows ce|palm|smartphone|iemobile`)
)

// Client 是从 User-Agent 推断出的客户端信息。
type Client struct {
	DeviceType string
	Browser    string
	OS         string
}

// ParseUserAgent 粗略识别设备类型、浏览器与操作系统，无法识别时为 Unknown。
func ParseUserAgent(ua string) Client {
	ua = strings.ToLower(ua)
	return Client{
		DeviceType: deviceType(ua),
		Browser:    browser(ua),
		OS:         operatingSystem(ua),
	}
}

func deviceType(ua string) string {
	switch {
	case tabletPattern.MatchString(ua):
		return "tablet"
	case mobilePattern.MatchString(ua):
		return "mobile"
	default:
		return "desktop"
	}
}

func browser(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Unknown"
	}
}

// iOS 与 Android 的 UA 同时包含 mac/linux 字样，需要先判断。
func operatingSystem(ua string) string {
	switch {
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ipod"):
		return "iOS"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}
