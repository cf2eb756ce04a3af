package led

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sim keeps the last frame in memory and logs a compact summary (frame
// number, average and first pixel). Useful headless and in tests.
type Sim struct {
	Log zerolog.Logger

	mu    sync.Mutex
	count int
	last  []byte
}

func NewSim(log zerolog.Logger) *Sim { return &Sim{Log: log} }

func (s *Sim) Write(rgb []byte) error {
	s.mu.Lock()
	s.count++
	s.last = append(s.last[:0], rgb...)
	n := s.count
	s.mu.Unlock()

	if e := s.Log.Debug(); e.Enabled() {
		var r, g, b int
		for i := 0; i+2 < len(rgb); i += 3 {
			r += int(rgb[i])
			g += int(rgb[i+1])
			b += int(rgb[i+2])
		}
		px := len(rgb) / 3
		if px == 0 {
			px = 1
		}
		e = e.Int("frame", n).
			Floats64("avg", []float64{float64(r) / float64(px), float64(g) / float64(px), float64(b) / float64(px)})
		if len(rgb) >= 3 {
			e = e.Hex("first", rgb[:3])
		}
		e.Msg("sim frame")
	}
	return nil
}

func (s *Sim) Close() error { return nil }

// Frames is the number of frames written so far.
func (s *Sim) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Last returns a copy of the most recent frame.
func (s *Sim) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}
