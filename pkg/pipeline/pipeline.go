// Package pipeline turns a variable-size, variable-rate stream of mono
// signed 16-bit PCM chunks into fixed 10ms frames, runs them through a noise
// suppression kernel at the processing rate and delivers the denoised frames
// back at the caller's rate, in arrival order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/denoiser"
	"github.com/xaionaro-go/denoise/pkg/denoiser/implementations/spectralgate"
	"github.com/xaionaro-go/denoise/pkg/framebuffer"
	"github.com/xaionaro-go/denoise/pkg/resampler"
)

var (
	ErrClosed     = errors.New("the pipeline is closed")
	ErrEmptyChunk = errors.New("the input chunk is empty")
)

// consecutiveFailureLimit bounds the skip-and-continue policy for per-frame
// kernel/resample failures: a single bad frame is dropped with a warning,
// but this many failures in a row abort the call with an error instead of
// silently eating the whole stream.
const consecutiveFailureLimit = 10

// Pipeline is safe for concurrent use: ProcessChunk/Flush/Close serialize on
// one lock (frame ordering and the resampler filter state depend on it),
// while Stats/ResetStats only touch the statistics aggregate and never block
// the processing path. The callback is invoked synchronously, in frame
// arrival order, and never concurrently with itself.
type Pipeline struct {
	cfg        Config
	kernel     denoiser.Denoiser
	ownsKernel bool
	adapter    resampler.Adapter

	locker sync.Mutex
	closed bool
	acc    *framebuffer.Accumulator

	// Scratch frames, allocated once; no per-frame heap churn afterwards.
	inFrame  []int16 // one frame at the input rate
	procIn   []int16 // one frame at the processing rate
	procOut  []int16
	outFrame []int16

	consecutiveFailures int

	stats Stats
}

func New(ctx context.Context, cfg Config) (_ *Pipeline, _err error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	kernel := cfg.Kernel
	ownsKernel := false
	if kernel == nil {
		var err error
		kernel, err = spectralgate.New(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("unable to create the kernel: %w", err)
		}
		ownsKernel = true
		defer func() {
			if _err != nil {
				kernel.Close()
			}
		}()
	}

	processingRate := kernel.SampleRate()
	if kernel.FrameSize() != audio.FrameSamples(processingRate) {
		return nil, fmt.Errorf("the kernel frame size %d does not correspond to %v at %dHz", kernel.FrameSize(), audio.FrameDuration, processingRate)
	}
	adapter, err := resampler.NewAdapter(cfg.InputSampleRate, processingRate, cfg.ResampleQuality)
	if err != nil {
		return nil, fmt.Errorf("unable to create the resampling adapter: %w", err)
	}

	inFrameSamples := audio.FrameSamples(cfg.InputSampleRate)
	procFrameSamples := kernel.FrameSize()
	logger.Debugf(ctx, "creating a pipeline: inputRate:%d (%d samples/frame), processingRate:%d (%d samples/frame), resampling:%v",
		cfg.InputSampleRate, inFrameSamples, processingRate, procFrameSamples, cfg.InputSampleRate != processingRate)

	p := &Pipeline{
		cfg:        cfg,
		kernel:     kernel,
		ownsKernel: ownsKernel,
		adapter:    adapter,
		acc:        framebuffer.NewAccumulator(),
		inFrame:    make([]int16, inFrameSamples),
		procIn:     make([]int16, procFrameSamples),
		procOut:    make([]int16, procFrameSamples),
		outFrame:   make([]int16, inFrameSamples),
	}
	p.stats.Reset()
	return p, nil
}

// ProcessChunk buffers the chunk and processes every complete frame it
// yields, invoking the callback zero or more times before returning. It
// blocks while another ProcessChunk/Flush/Close on this instance is in
// flight; callers on a latency-sensitive path should dispatch onto a single
// dedicated worker (never a pool: parallel calls would reorder frames).
func (p *Pipeline) ProcessChunk(ctx context.Context, samples []int16) (_err error) {
	logger.Tracef(ctx, "ProcessChunk, len:%d", len(samples))
	defer func() { logger.Tracef(ctx, "/ProcessChunk: %v", _err) }()

	p.locker.Lock()
	defer p.locker.Unlock()
	if p.closed {
		return ErrClosed
	}
	if len(samples) == 0 {
		return ErrEmptyChunk
	}

	if err := p.acc.Append(samples); err != nil {
		return fmt.Errorf("unable to buffer the chunk: %w", err)
	}
	for p.acc.PopFrame(p.inFrame) {
		if err := p.processFrame(ctx, len(p.inFrame)); err != nil {
			return err
		}
	}
	return nil
}

// Flush processes the buffered remainder, if any, as one zero-padded frame;
// the delivered output is truncated back to the real sample count. A flush
// with an empty buffer is a no-op. Statistics are kept.
func (p *Pipeline) Flush(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Flush")
	defer func() { logger.Tracef(ctx, "/Flush: %v", _err) }()

	p.locker.Lock()
	defer p.locker.Unlock()
	if p.closed {
		return ErrClosed
	}

	realSamples, ok := p.acc.FlushPadded(p.inFrame)
	if !ok {
		return nil
	}
	return p.processFrame(ctx, realSamples)
}

// processFrame runs p.inFrame through resample -> kernel -> resample and
// delivers the result. Must be called with the processing lock held.
func (p *Pipeline) processFrame(ctx context.Context, realSamples int) error {
	start := time.Now()

	if err := p.adapter.ToProcessingRate(p.procIn, p.inFrame); err != nil {
		return p.frameFailure(ctx, err)
	}
	vadProbability, err := p.kernel.ProcessFrame(ctx, p.procIn, p.procOut)
	if err != nil {
		return p.frameFailure(ctx, err)
	}
	if err := p.adapter.ToInputRate(p.outFrame, p.procOut); err != nil {
		return p.frameFailure(ctx, err)
	}
	p.consecutiveFailures = 0

	result := FrameResult{
		SamplesProcessed: realSamples,
	}
	if p.cfg.CollectStatistics {
		result.VADProbability = float32(vadProbability)
		result.IsSpeech = result.VADProbability >= p.cfg.VADThreshold
		p.stats.Record(result, time.Since(start))
	}
	p.cfg.Callback(p.outFrame[:realSamples], result)
	return nil
}

// frameFailure implements the skip-and-continue policy: the offending frame
// is dropped (no callback, no statistics) and the stream goes on, unless the
// failures keep repeating.
func (p *Pipeline) frameFailure(ctx context.Context, err error) error {
	p.consecutiveFailures++
	if p.consecutiveFailures >= consecutiveFailureLimit {
		return fmt.Errorf("%d consecutive frame failures, the last one: %w", p.consecutiveFailures, err)
	}
	logger.Warnf(ctx, "dropping a frame: %v", err)
	return nil
}

// Stats returns a snapshot of the running statistics. Safe to call from any
// goroutine, concurrently with processing.
func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

func (p *Pipeline) ResetStats() {
	p.stats.Reset()
}

// Close releases the buffers and the owned kernel. It waits for an in-flight
// ProcessChunk/Flush to finish. Idempotent: repeated calls are no-ops.
func (p *Pipeline) Close() error {
	p.locker.Lock()
	defer p.locker.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	p.acc.Reset()
	p.acc = nil
	p.inFrame = nil
	p.procIn = nil
	p.procOut = nil
	p.outFrame = nil

	if p.ownsKernel {
		if err := p.kernel.Close(); err != nil {
			return fmt.Errorf("unable to close the kernel: %w", err)
		}
	}
	return nil
}
