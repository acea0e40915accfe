// Package pipelinestream exposes a denoising pipeline as an io.Reader over
// little-endian signed 16-bit mono PCM: bytes read from the input are pushed
// through the pipeline by a single worker goroutine (frame order depends on
// it being single) and the denoised bytes come out of Read.
package pipelinestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/pipeline"
)

const readChunkSize = 65536

type PipelineStream struct {
	Pipeline *pipeline.Pipeline

	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	resultError        error
	readCtx            context.Context
	cancelFunc         context.CancelFunc

	outputProgressedCh chan struct{}
	readProgressedCh   chan struct{}

	byteScratch []byte
}

var _ io.Reader = (*PipelineStream)(nil)

// NewPipelineStream creates the pipeline from cfg (the Callback field must
// be left unset; the stream owns result delivery) and starts consuming
// input. Reaching EOF on the input flushes the buffered remainder.
func NewPipelineStream(
	ctx context.Context,
	input io.Reader,
	cfg pipeline.Config,
	outputBufferSize uint,
) (*PipelineStream, error) {
	if cfg.Callback != nil {
		return nil, fmt.Errorf("the result callback is owned by the stream, leave it unset")
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &PipelineStream{
		outputBuffer: circular.NewBuffer(int(outputBufferSize)),
		readCtx:      ctx,
		cancelFunc:   cancelFunc,

		outputProgressedCh: make(chan struct{}),
		readProgressedCh:   make(chan struct{}),
	}
	cfg.Callback = s.deliver
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("unable to create the pipeline: %w", err)
	}
	s.Pipeline = p

	observability.Go(ctx, func() {
		defer cancelFunc()
		err := s.processLoop(ctx, input)
		s.outputBufferLocker.Lock()
		defer s.outputBufferLocker.Unlock()
		if s.resultError == nil {
			s.resultError = err
		}
		s.signalOutputProgressedLocked()
	})
	return s, nil
}

func (s *PipelineStream) processLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "processLoop")
	defer func() { logger.Tracef(ctx, "/processLoop: %v", _err) }()

	readBuf := make([]byte, readChunkSize)
	sampleBuf := make([]int16, readChunkSize/audio.BytesPerSample)
	carry := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := input.Read(readBuf[carry:])
		if n > 0 {
			total := carry + n
			complete := total - total%audio.BytesPerSample
			sampleCount := audio.BytesToSamples(sampleBuf, readBuf[:complete])
			if sampleCount > 0 {
				if processErr := s.Pipeline.ProcessChunk(ctx, sampleBuf[:sampleCount]); processErr != nil {
					return fmt.Errorf("unable to process a chunk: %w", processErr)
				}
			}
			carry = copy(readBuf, readBuf[complete:total])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("unable to read the input: %w", err)
			}
			if carry != 0 {
				return fmt.Errorf("the input ended mid-sample: %d dangling byte(s)", carry)
			}
			if flushErr := s.Pipeline.Flush(ctx); flushErr != nil {
				return fmt.Errorf("unable to flush: %w", flushErr)
			}
			return io.EOF
		}
	}
}

// deliver is the pipeline callback; it runs on the worker goroutine.
func (s *PipelineStream) deliver(samples []int16, result pipeline.FrameResult) {
	need := len(samples) * audio.BytesPerSample
	if cap(s.byteScratch) < need {
		s.byteScratch = make([]byte, need)
	}
	buf := s.byteScratch[:need]
	audio.SamplesToBytes(buf, samples)

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for len(buf) > 0 {
		w, err := s.outputBuffer.Write(buf)
		buf = buf[w:]
		if err != nil {
			if errors.Is(err, circular.ErrNoSpace) {
				s.waitForReadProgressed()
				if s.readCtx.Err() != nil {
					// The stream is shutting down, nobody will read the
					// remainder; dropping it lets the worker terminate.
					return
				}
				continue
			}
			logger.Errorf(s.readCtx, "unable to write to the output buffer: %v", err)
			return
		}
	}
	s.signalOutputProgressedLocked()
}

func (s *PipelineStream) signalOutputProgressedLocked() {
	oldCh := s.outputProgressedCh
	s.outputProgressedCh = make(chan struct{})
	close(oldCh)
}

func (s *PipelineStream) waitForReadProgressed() {
	ch := s.readProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-s.readCtx.Done():
	case <-ch:
	}
}

// Read hands out denoised PCM bytes, blocking until at least one byte is
// available or the stream finishes. After the input is exhausted and every
// processed byte was read, it returns io.EOF.
func (s *PipelineStream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read: %d, %v", _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		n, err := s.outputBuffer.Read(p)
		if n > 0 || err == nil {
			oldCh := s.readProgressedCh
			s.readProgressedCh = make(chan struct{})
			close(oldCh)
			return n, nil
		}
		if !errors.Is(err, io.EOF) {
			return 0, err
		}
		// The buffer is drained; either the stream is over or more output
		// is on the way.
		if s.resultError != nil {
			return 0, s.resultError
		}
		s.waitForOutputProgressed()
	}
}

func (s *PipelineStream) waitForOutputProgressed() {
	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-s.readCtx.Done():
	case <-ch:
	}
}

// Stats proxies the pipeline statistics.
func (s *PipelineStream) Stats() pipeline.StatsSnapshot {
	return s.Pipeline.Stats()
}

// Close stops the worker and releases the pipeline. Blocked readers are
// woken up.
func (s *PipelineStream) Close() error {
	s.cancelFunc()

	var mErr *multierror.Error
	if err := s.Pipeline.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the pipeline: %w", err))
	}

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	if s.resultError == nil {
		s.resultError = fmt.Errorf("the stream is closed")
	}
	s.signalOutputProgressedLocked()
	return mErr.ErrorOrNil()
}
