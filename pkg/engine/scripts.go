package engine

import (
	"encoding/json"
	"fmt"

	"github.com/LagoAI/LiebExplorer/pkg/identity"
)

// fingerprintPayload is the shape the override script reads.
type fingerprintPayload struct {
	identity.Identity
	NavigatorPlatform string `json:"navigator_platform"`
	DeviceMemory      int    `json:"device_memory"`
}

// fingerprintScript overrides navigator, screen, WebGL, font metrics and
// plugins. renderFingerprintScript wraps it with the `fp` binding.
const fingerprintScript = `
  const define = (obj, key, value) => {
    try {
      Object.defineProperty(obj, key, { get: () => value, configurable: true });
    } catch (e) {}
  };

  define(navigator, 'webdriver', undefined);
  define(navigator, 'userAgent', fp.user_agent);
  define(navigator, 'language', fp.language);
  define(navigator, 'languages', [fp.language]);
  define(navigator, 'platform', fp.navigator_platform);
  define(navigator, 'hardwareConcurrency', fp.cpu_cores);
  define(navigator, 'deviceMemory', fp.device_memory);
  define(navigator, 'maxTouchPoints', fp.touch_points);

  define(screen, 'width', fp.screen_width);
  define(screen, 'height', fp.screen_height);
  define(screen, 'availWidth', fp.screen_width);
  define(screen, 'availHeight', fp.screen_height);
  define(screen, 'colorDepth', fp.color_depth);
  define(screen, 'pixelDepth', fp.color_depth);

  const patchWebGL = (proto) => {
    if (!proto) return;
    const getParameter = proto.getParameter;
    proto.getParameter = function (parameter) {
      switch (parameter) {
        case 37445: return fp.gpu_info.vendor;
        case 37446: return fp.gpu_info.renderer;
        case 7938: return fp.gpu_info.version;
      }
      return getParameter.apply(this, arguments);
    };
  };
  patchWebGL(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
  patchWebGL(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);

  if (window.CanvasRenderingContext2D) {
    const measureText = CanvasRenderingContext2D.prototype.measureText;
    CanvasRenderingContext2D.prototype.measureText = function (text) {
      const result = measureText.apply(this, arguments);
      const family = (this.font || '').split(' ').pop().replace(/["']/g, '');
      if (family && !fp.fonts.includes(family)) {
        try { define(result, 'width', result.width * 0.9); } catch (e) {}
      }
      return result;
    };
  }

  const plugins = (fp.plugins || []).map((p) => ({
    name: p.name,
    filename: p.filename,
    description: p.description,
    length: 1,
  }));
  define(navigator, 'plugins', plugins);
`

// stealthScript removes automation traces and neutralizes permission probes.
const stealthScript = `(() => {
  delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
  delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
  delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;

  if (!window.chrome) {
    window.chrome = { runtime: {} };
  }

  if (window.Notification) {
    const permission = window.Notification.permission;
    try {
      Object.defineProperty(window.Notification, 'permission', {
        get: () => permission || 'default',
      });
    } catch (e) {}
  }

  if (window.Permissions && window.Permissions.prototype.query) {
    const query = window.Permissions.prototype.query;
    window.Permissions.prototype.query = function (desc) {
      if (desc && desc.name === 'notifications') {
        return Promise.resolve({ state: 'prompt', onchange: null });
      }
      return query.apply(this, arguments);
    };
  }
})();`

// zoomScript applies a zoom percentage to the document.
const zoomScript = `(level) => {
  document.body.style.zoom = level + '%';
  document.documentElement.style.setProperty('--zoom-level', level / 100);
  window.__zoom_level = level;
  return level;
}`

// userAgentProbe is evaluated by Verify.
const userAgentProbe = `() => navigator.userAgent`

// renderFingerprintScript binds the identity into the override script.
func renderFingerprintScript(id identity.Identity) (string, error) {
	payload, err := json.Marshal(fingerprintPayload{
		Identity:          id,
		NavigatorPlatform: id.NavigatorPlatform(),
		DeviceMemory:      id.DeviceMemoryGB(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	return "(() => {\n  const fp = " + string(payload) + ";\n" + fingerprintScript + "})();", nil
}
