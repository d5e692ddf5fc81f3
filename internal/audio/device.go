package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// DeviceConfig describes how the microphone is opened.
type DeviceConfig struct {
	SampleRate uint32
	Channels   uint32
}

// Device is an open capture device. Closing it stops the sample callback.
type Device interface {
	Close() error
}

// Opener opens capture devices. The malgo implementation is the default;
// tests substitute a fake that feeds synthetic chunks.
type Opener interface {
	// Open starts capturing from the default microphone. onChunk is invoked
	// from the device callback with batches of float32 samples and must not
	// block.
	Open(cfg DeviceConfig, onChunk func(samples []float32)) (Device, error)
}

type malgoOpener struct{}

// NewOpener returns the malgo-backed device opener.
func NewOpener() Opener {
	return malgoOpener{}
}

func (malgoOpener) Open(cfg DeviceConfig, onChunk func([]float32)) (Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = cfg.Channels
	deviceCfg.SampleRate = cfg.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			onChunk(bytesToFloat32(pSample, frameCount*cfg.Channels))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	return &malgoDevice{ctx: ctx, device: device}, nil
}

type malgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func (d *malgoDevice) Close() error {
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
