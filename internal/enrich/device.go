package enrich

import (
	"strings"

	ua "github.com/mileusna/useragent"

	"github.com/davrd/treelink/internal/repo"
)

const unknown = "Unknown"

// ParseUserAgent classifies a raw user-agent string. It is a pure parse:
// undetected fields come back as "Unknown" and the device type falls back to
// "desktop".
func ParseUserAgent(raw string) repo.Device {
	parsed := ua.Parse(raw)

	device := repo.Device{
		Type:    "desktop",
		Browser: unknown,
		Vendor:  unknown,
		Model:   unknown,
		OS:      unknown,
		CPU:     cpuArchitecture(raw),
	}

	switch {
	case parsed.Mobile:
		device.Type = "mobile"
	case parsed.Tablet:
		device.Type = "tablet"
	case parsed.Bot:
		device.Type = "bot"
	}

	if parsed.Name != "" {
		device.Browser = parsed.Name
	}
	if parsed.OS != "" {
		device.OS = parsed.OS
	}
	if parsed.Device != "" {
		device.Model = parsed.Device
		device.Vendor = deviceVendor(parsed.Device)
	}

	return device
}

func deviceVendor(model string) string {
	switch {
	case strings.HasPrefix(model, "iPhone"), strings.HasPrefix(model, "iPad"), strings.HasPrefix(model, "Mac"):
		return "Apple"
	case strings.HasPrefix(model, "Pixel"):
		return "Google"
	case strings.HasPrefix(model, "SM-"), strings.HasPrefix(model, "Galaxy"):
		return "Samsung"
	default:
		return unknown
	}
}

func cpuArchitecture(raw string) string {
	lowered := strings.ToLower(raw)
	switch {
	case strings.Contains(lowered, "x86_64"), strings.Contains(lowered, "x64"), strings.Contains(lowered, "amd64"), strings.Contains(lowered, "win64"), strings.Contains(lowered, "wow64"):
		return "amd64"
	case strings.Contains(lowered, "arm64"), strings.Contains(lowered, "aarch64"):
		return "arm64"
	case strings.Contains(lowered, "arm"):
		return "arm"
	case strings.Contains(lowered, "i686"), strings.Contains(lowered, "i386"):
		return "ia32"
	default:
		return unknown
	}
}
