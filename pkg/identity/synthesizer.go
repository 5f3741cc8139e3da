package identity

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

// Synthesizer generates identities from an injected random source.
// It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer drawing from src.
func NewSynthesizer(src rand.Source) *Synthesizer {
	return &Synthesizer{rng: rand.New(src)}
}

// NewSeededSynthesizer creates a synthesizer whose output is fully
// determined by seed.
func NewSeededSynthesizer(seed int64) *Synthesizer {
	return NewSynthesizer(rand.NewSource(seed))
}

// NewRandomSynthesizer seeds a synthesizer from crypto/rand.
func NewRandomSynthesizer() *Synthesizer {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return NewSeededSynthesizer(int64(binary.LittleEndian.Uint64(b[:])))
}

// Generate returns a new self-consistent identity.
func (s *Synthesizer) Generate() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rng
	p := platforms[r.Intn(len(platforms))]
	osVersion := p.osVersions[r.Intn(len(p.osVersions))]
	chrome := chromeVersions[r.Intn(len(chromeVersions))]
	res := resolutions[r.Intn(len(resolutions))]

	id := Identity{
		Platform:       p.family,
		OSVersion:      osVersion,
		ChromeVersion:  chrome,
		ScreenWidth:    res.width,
		ScreenHeight:   res.height,
		ViewportWidth:  res.width,
		ViewportHeight: res.height - browserChromeHeight,
		PixelRatio:     pixelRatios[r.Intn(len(pixelRatios))],
		ColorDepth:     colorDepth,
		Locale:         locales[r.Intn(len(locales))],
		Timezone:       timezones[r.Intn(len(timezones))],
		CPUCores:       cpuCores[r.Intn(len(cpuCores))],
		MemoryMB:       (minMemoryGB + r.Intn(maxMemoryGB-minMemoryGB+1)) * 1024,
		GPU:            gpus[r.Intn(len(gpus))],
		WebGLVendor:    webGLVendors[r.Intn(len(webGLVendors))],
		TouchPoints:    touchPoints[r.Intn(len(touchPoints))],
	}

	nFonts := minFonts + r.Intn(maxFonts-minFonts+1)
	id.Fonts = sample(r, fontCatalog, nFonts)
	id.Plugins = sample(r, pluginCatalog, 1+r.Intn(len(pluginCatalog)))
	id.UserAgent = UserAgent(id.Platform, id.OSVersion, id.ChromeVersion)

	return id
}

// sample draws n elements from catalog without replacement, keeping the
// catalog order of the chosen elements.
func sample[T any](r *rand.Rand, catalog []T, n int) []T {
	if n > len(catalog) {
		n = len(catalog)
	}
	picked := r.Perm(len(catalog))[:n]
	chosen := make([]bool, len(catalog))
	for _, i := range picked {
		chosen[i] = true
	}
	out := make([]T, 0, n)
	for i, v := range catalog {
		if chosen[i] {
			out = append(out, v)
		}
	}
	return out
}
