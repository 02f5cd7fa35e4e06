// Package audio handles device capture and chunk buffering
package audio

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Buffer is one capture callback's worth of mono samples, tagged with the
// capture clock so downstream consumers can place it on the session timeline.
type Buffer struct {
	Data    []float32
	Elapsed float64 // seconds since capture start
}

// Capturer reads mono audio from an input device with backpressure.
type Capturer struct {
	outCh        chan Buffer
	sampleRate   int
	framesPerBuf int
	excludedDevs []string

	mu      sync.Mutex
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	running bool
}

// NewCapturer creates an audio capturer.
func NewCapturer(sampleRate, bufferSize int, excludedDevices []string) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	return &Capturer{
		outCh:        make(chan Buffer, bufferSize),
		sampleRate:   sampleRate,
		framesPerBuf: FramesPerBuffer,
		excludedDevs: excludedDevices,
	}, nil
}

// Output returns the channel for receiving sample buffers.
func (c *Capturer) Output() <-chan Buffer { return c.outCh }

// Start begins capturing from the best available input device.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	dev, err := c.pickDevice()
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: c.framesPerBuf,
	}

	buf := make([]float32, c.framesPerBuf)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	devCtx, cancel := context.WithCancel(ctx)
	c.stream = stream
	c.cancel = cancel
	c.running = true
	slog.Info("started audio capture", "device", dev.Name, "sample_rate", c.sampleRate)

	go c.readLoop(devCtx, stream, buf, dev.Name)
	return nil
}

func (c *Capturer) readLoop(ctx context.Context, stream *portaudio.Stream, buf []float32, device string) {
	samplesRead := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			slog.Debug("audio read error", "device", device, "error", err)
			return
		}

		out := Buffer{
			Data:    append([]float32(nil), buf...),
			Elapsed: float64(samplesRead) / float64(c.sampleRate),
		}
		samplesRead += len(buf)

		select {
		case c.outCh <- out:
		default:
			slog.Debug("audio buffer full, dropping samples", "device", device)
		}
	}
}

// pickDevice selects an input device, preferring built-in microphones and
// skipping excluded names.
func (c *Capturer) pickDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || c.isExcluded(dev.Name) {
			continue
		}
		if best == nil || preferDevice(dev.Name, best.Name) {
			best = dev
		}
	}
	if best == nil {
		return nil, portaudio.DeviceUnavailable
	}
	return best, nil
}

func (c *Capturer) isExcluded(name string) bool {
	for _, ex := range c.excludedDevs {
		if strings.Contains(strings.ToLower(name), strings.ToLower(ex)) {
			return true
		}
	}
	return false
}

func preferDevice(name, current string) bool {
	preferred := []string{"macbook", "built-in"}
	for _, p := range preferred {
		nameHas := strings.Contains(strings.ToLower(name), p)
		currHas := strings.Contains(strings.ToLower(current), p)
		if nameHas && !currHas {
			return true
		}
	}
	return false
}

// Stop stops audio capture.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.stream != nil {
		_ = c.stream.Stop()
		_ = c.stream.Close()
		c.stream = nil
	}
	c.running = false
	_ = portaudio.Terminate()
}
