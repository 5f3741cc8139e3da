// Package identity synthesizes browser fingerprints.
//
// An Identity is an immutable record of the device and browser attributes a
// session presents to the pages it visits. Every field is drawn from a fixed
// catalog; the user agent is derived from the platform, OS version and
// Chrome version so that a consumer can validate it without re-randomizing.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// GPU is the WebGL vendor/renderer/version triple reported by the session.
type GPU struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
	Version  string `json:"version"`
}

// Plugin describes an entry of navigator.plugins.
type Plugin struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// Identity is a synthesized browser fingerprint. Treat it as a value: the
// slices are never shared with the catalogs and must not be mutated.
type Identity struct {
	Platform       string   `json:"platform"`
	OSVersion      string   `json:"os_version"`
	ChromeVersion  string   `json:"chrome_version"`
	ScreenWidth    int      `json:"screen_width"`
	ScreenHeight   int      `json:"screen_height"`
	ViewportWidth  int      `json:"viewport_width"`
	ViewportHeight int      `json:"viewport_height"`
	PixelRatio     float64  `json:"pixel_ratio"`
	ColorDepth     int      `json:"color_depth"`
	Locale         string   `json:"language"`
	Timezone       string   `json:"timezone"`
	CPUCores       int      `json:"cpu_cores"`
	MemoryMB       int      `json:"memory_size"`
	GPU            GPU      `json:"gpu_info"`
	WebGLVendor    string   `json:"webgl_vendor"`
	TouchPoints    int      `json:"touch_points"`
	Fonts          []string `json:"fonts"`
	Plugins        []Plugin `json:"plugins"`
	UserAgent      string   `json:"user_agent"`
}

// PlatformToken returns the platform segment embedded between the
// parentheses of the user agent.
func PlatformToken(platform, osVersion string) string {
	switch platform {
	case PlatformWindows:
		return fmt.Sprintf("Windows NT %s; Win64; x64", osVersion)
	case PlatformMacintosh:
		return fmt.Sprintf("Macintosh; Intel Mac OS X %s", osVersion)
	default:
		return fmt.Sprintf("X11; %s", osVersion)
	}
}

// UserAgent derives the Chrome user agent string for the given platform.
func UserAgent(platform, osVersion, chromeVersion string) string {
	return fmt.Sprintf(
		"Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
		PlatformToken(platform, osVersion),
		chromeVersion,
	)
}

// NavigatorPlatform returns the navigator.platform value matching the family.
func (id Identity) NavigatorPlatform() string {
	switch id.Platform {
	case PlatformWindows:
		return "Win32"
	case PlatformMacintosh:
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}

// DeviceMemoryGB returns the navigator.deviceMemory value.
func (id Identity) DeviceMemoryGB() int {
	return id.MemoryMB / 1024
}

// Validate checks the internal consistency of the identity.
func (id Identity) Validate() error {
	var errs []error
	if id.ViewportWidth <= 0 || id.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("viewport must be positive, got %dx%d", id.ViewportWidth, id.ViewportHeight))
	}
	if id.ScreenWidth < id.ViewportWidth || id.ScreenHeight < id.ViewportHeight {
		errs = append(errs, fmt.Errorf("viewport %dx%d exceeds screen %dx%d",
			id.ViewportWidth, id.ViewportHeight, id.ScreenWidth, id.ScreenHeight))
	}
	if id.PixelRatio <= 0 {
		errs = append(errs, fmt.Errorf("pixel ratio must be positive, got %v", id.PixelRatio))
	}
	if !strings.Contains(id.UserAgent, PlatformToken(id.Platform, id.OSVersion)) {
		errs = append(errs, fmt.Errorf("user agent %q lacks platform token for %s %s", id.UserAgent, id.Platform, id.OSVersion))
	}
	if want := UserAgent(id.Platform, id.OSVersion, id.ChromeVersion); id.UserAgent != want {
		errs = append(errs, fmt.Errorf("user agent %q does not match derived %q", id.UserAgent, want))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (id Identity) Clone() Identity {
	out := id
	out.Fonts = append([]string(nil), id.Fonts...)
	out.Plugins = append([]Plugin(nil), id.Plugins...)
	return out
}
