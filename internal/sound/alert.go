// Package sound provides the timer-alert playback implementations.
package sound

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.AlertPlayer = (*Beeper)(nil)
	_ domain.AlertPlayer = (*NoOp)(nil)
)

const (
	sampleRate   = 44100
	channelCount = 1

	beepFreqHz    = 880.0
	beepBurst     = 150 * time.Millisecond
	beepGap       = 100 * time.Millisecond
	beepBursts    = 3
	beepAmplitude = 0.4
)

// Beeper plays a short generated beep through the system audio device.
type Beeper struct {
	ctx *oto.Context
	log *logger.Logger
	pcm []byte

	mu sync.Mutex
}

// NewBeeper initializes the system audio context. Returns an error if the
// audio device is unavailable; callers fall back to NoOp.
func NewBeeper(log *logger.Logger) (*Beeper, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("alert player initialized (rate=%d)", sampleRate)
	return &Beeper{ctx: ctx, log: log, pcm: beepPCM()}, nil
}

// PlayAlert plays the alert beep synchronously. Concurrent callers are
// serialized so overlapping timer finishes produce distinct beeps.
func (b *Beeper) PlayAlert() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	player := b.ctx.NewPlayer(bytes.NewReader(b.pcm))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return player.Close()
}

// beepPCM renders the alert tone: short sine bursts with gaps, 16-bit
// signed little-endian mono.
func beepPCM() []byte {
	burstSamples := int(float64(sampleRate) * beepBurst.Seconds())
	gapSamples := int(float64(sampleRate) * beepGap.Seconds())

	var buf bytes.Buffer
	for burst := 0; burst < beepBursts; burst++ {
		for i := 0; i < burstSamples; i++ {
			v := beepAmplitude * math.Sin(2*math.Pi*beepFreqHz*float64(i)/sampleRate)
			binary.Write(&buf, binary.LittleEndian, int16(v*math.MaxInt16))
		}
		if burst < beepBursts-1 {
			for i := 0; i < gapSamples; i++ {
				binary.Write(&buf, binary.LittleEndian, int16(0))
			}
		}
	}
	return buf.Bytes()
}

// NoOp is an alert player that does nothing. Used in headless environments
// and when the audio device is unavailable.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op alert player.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// PlayAlert logs and does nothing.
func (n *NoOp) PlayAlert() error {
	n.log.Debug("alert player no-op: would beep")
	return nil
}
