package hal

// The beep of the sound timer. Both shells feed their audio device from
// ToneWave: the ebiten shell wraps it in a player directly, the SDL shell
// reads chunks into its queue.

const (
	ToneSampleRate = 44100
	ToneFrequency  = 440

	toneAmplitude = 6000
)

// ToneWave is an endless square wave, encoded as 16-bit little-endian
// two-channel PCM. It never returns an error from Read.
type ToneWave struct {
	freq int
	pos  int64
}

func NewToneWave(freq int) *ToneWave {
	return &ToneWave{freq: freq}
}

func (w *ToneWave) Read(p []byte) (int, error) {
	const bytesPerSample = 4 // two channels, two bytes each

	halfPeriod := int64(ToneSampleRate / w.freq / 2)

	n := len(p) / bytesPerSample * bytesPerSample
	for i := 0; i < n; i += bytesPerSample {
		sample := int16(toneAmplitude)
		if (w.pos/halfPeriod)%2 == 1 {
			sample = -sample
		}

		p[i] = byte(sample)
		p[i+1] = byte(sample >> 8)
		p[i+2] = byte(sample)
		p[i+3] = byte(sample >> 8)

		w.pos++
	}

	return n, nil
}
