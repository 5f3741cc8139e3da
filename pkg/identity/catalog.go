package identity

// Platform families presented to detection logic. The value doubles as the
// navigator.platform family name.
const (
	PlatformWindows   = "Windows"
	PlatformMacintosh = "Macintosh"
	PlatformX11       = "X11"
)

type platformSpec struct {
	family     string
	osVersions []string
}

var platforms = []platformSpec{
	{family: PlatformWindows, osVersions: []string{"10.0", "11.0"}},
	{family: PlatformMacintosh, osVersions: []string{"10_15_7", "11_0_0", "12_0_0"}},
	{family: PlatformX11, osVersions: []string{"Linux x86_64", "Ubuntu; Linux x86_64"}},
}

type resolution struct {
	width, height int
}

var resolutions = []resolution{
	{1920, 1080}, {2560, 1440}, {1680, 1050},
	{1440, 900}, {1366, 768}, {1280, 1024},
	{3840, 2160}, {2560, 1600}, {3440, 1440},
}

var chromeVersions = []string{"120.0.0.0", "119.0.0.0", "118.0.0.0"}

// fontCatalog holds common system fonts across the three platform families.
var fontCatalog = []string{
	"Arial", "Calibri", "Cambria", "Comic Sans MS", "Courier New",
	"Georgia", "Impact", "Times New Roman", "Trebuchet MS", "Verdana",
	"Helvetica", "Helvetica Neue", "San Francisco", "Monaco", "Menlo",
	"Ubuntu", "DejaVu Sans", "Liberation Sans", "FreeSans", "Droid Sans",
}

const (
	minFonts = 10
	maxFonts = 20
)

var pluginCatalog = []Plugin{
	{Name: "Chrome PDF Plugin", Filename: "internal-pdf-viewer", Description: "Portable Document Format"},
	{Name: "Chrome PDF Viewer", Filename: "mhjfbmdgcfjbbpaeojofohoefgiehjai", Description: "Chromium PDF Viewer"},
}

var gpus = []GPU{
	{Vendor: "Intel", Renderer: "Intel Iris Xe Graphics", Version: "OpenGL ES 3.0"},
	{Vendor: "NVIDIA", Renderer: "NVIDIA GeForce RTX 3060", Version: "OpenGL ES 3.0"},
	{Vendor: "AMD", Renderer: "AMD Radeon RX 6700", Version: "OpenGL ES 3.0"},
}

var webGLVendors = []string{
	"Intel Open Source Technology Center",
	"Google Inc.",
	"Apple Inc.",
}

var locales = []string{
	"en-US", "en-GB", "en-CA",
	"fr-FR", "de-DE", "es-ES",
	"zh-CN", "ja-JP", "ko-KR",
}

var timezones = []string{
	"America/New_York", "America/Los_Angeles", "America/Chicago",
	"Europe/London", "Europe/Paris", "Europe/Berlin",
	"Asia/Tokyo", "Asia/Shanghai", "Asia/Singapore",
}

var (
	pixelRatios = []float64{1, 1.25, 1.5, 2}
	cpuCores    = []int{4, 6, 8, 12, 16}
	touchPoints = []int{0, 2, 5, 10}
)

const (
	minMemoryGB = 4
	maxMemoryGB = 32

	// browserChromeHeight is subtracted from the screen height to get the
	// page viewport (tab strip + toolbar).
	browserChromeHeight = 85

	colorDepth = 24
)
