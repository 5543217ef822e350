package pixelgl

import (
	"math"
	"math/rand"
	"time"

	"github.com/faiface/beep"
)

// squareWave is a beep.Streamer that emits a fixed-frequency square
// wave for a fixed number of samples, used to synthesize BEEP tones
// (the teacher instead decodes and replays a constant beep.mp3 asset;
// our BEEP opcode carries a frequency, so we generate the waveform).
type squareWave struct {
	freq       float64
	sr         beep.SampleRate
	pos, total int
}

func newSquareWave(sr beep.SampleRate, freq float64, dur time.Duration) beep.Streamer {
	return &squareWave{freq: freq, sr: sr, total: sr.N(dur)}
}

func (s *squareWave) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= s.total {
			return i, i > 0
		}
		t := float64(s.pos) / float64(s.sr)
		v := 0.0
		if math.Mod(t*s.freq, 1) < 0.5 {
			v = 0.3
		} else {
			v = -0.3
		}
		samples[i][0], samples[i][1] = v, v
		s.pos++
	}
	return len(samples), true
}

func (s *squareWave) Err() error { return nil }

// randMod returns a uniform sample in [0,n] inclusive.
func randMod(n uint16) uint16 {
	if n == 0 {
		return 0
	}
	return uint16(rand.Intn(int(n) + 1))
}
