package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ebitengine/oto/v3"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/jfreymuth/oggvorbis"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/pipeline"
)

// chunkSize is deliberately not a multiple of the frame size, to exercise
// the reframing path the same way an audio capture callback would.
const chunkSize = 1024

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	inputRateFlag := pflag.Uint32("input-rate", uint32(audio.ProcessingSampleRate), "sample rate of the input, Hz")
	qualityFlag := pflag.Int("quality", 5, "resample quality: 0 (fastest) to 10 (best)")
	vadThresholdFlag := pflag.Float32("vad-threshold", 0.5, "voice activity threshold in [0..1]")
	modelFlag := pflag.String("model", "", "path to a custom kernel model (empty: the embedded one)")
	playFlag := pflag.Bool("play", false, "play the denoised result after processing")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	inputRate := audio.SampleRate(*inputRateFlag)
	samples, inputRate := readInput(ctx, pflag.Arg(0), inputRate)
	logger.Infof(ctx, "read %d samples at %dHz", len(samples), inputRate)

	output := make([]int16, 0, len(samples))
	cfg := pipeline.DefaultConfig()
	cfg.InputSampleRate = inputRate
	cfg.ResampleQuality = *qualityFlag
	cfg.VADThreshold = *vadThresholdFlag
	cfg.ModelPath = *modelFlag
	cfg.Callback = func(samples []int16, result pipeline.FrameResult) {
		output = append(output, samples...)
	}

	p, err := pipeline.New(ctx, cfg)
	assertNoError(err)
	defer func() {
		assertNoError(p.Close())
	}()

	for offset := 0; offset < len(samples); offset += chunkSize {
		end := offset + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		assertNoError(p.ProcessChunk(ctx, samples[offset:end]))
	}
	assertNoError(p.Flush(ctx))

	stats := p.Stats()
	logger.Debugf(ctx, "stats: %s", spew.Sdump(stats))
	logger.Infof(ctx, "frames:%d speech:%.1f%% vad(min/avg/max):%.2f/%.2f/%.2f time(total/avg/last):%.2f/%.3f/%.3fms",
		stats.FramesProcessed, stats.SpeechDetectedPercent,
		stats.VADScoreMin, stats.VADScoreAvg, stats.VADScoreMax,
		stats.ProcessingTimeTotalMS, stats.ProcessingTimeAvgMS, stats.ProcessingTimeLastMS)

	outputBytes := make([]byte, len(output)*audio.BytesPerSample)
	audio.SamplesToBytes(outputBytes, output)
	assertNoError(os.WriteFile(pflag.Arg(1), outputBytes, 0640))

	if *playFlag {
		play(ctx, outputBytes, inputRate)
	}
}

// readInput loads the input as raw s16le mono PCM, or decodes it as
// ogg/vorbis (downmixed to mono) when the file name says so; in the latter
// case the container's sample rate wins over the flag.
func readInput(ctx context.Context, path string, inputRate audio.SampleRate) ([]int16, audio.SampleRate) {
	f, err := os.Open(path)
	assertNoError(err)
	defer f.Close()
	rc := datacounter.NewReaderCounter(f)
	defer func() { logger.Debugf(ctx, "read %d bytes from '%s'", rc.Count(), path) }()

	if strings.HasSuffix(strings.ToLower(path), ".ogg") {
		oggReader, err := oggvorbis.NewReader(rc)
		assertNoError(err)
		channels := oggReader.Channels()
		buf := make([]float32, 4096*channels)
		var samples []int16
		for {
			n, err := oggReader.Read(buf)
			for idx := 0; idx+channels <= n; idx += channels {
				var sum float32
				for ch := 0; ch < channels; ch++ {
					sum += buf[idx+ch]
				}
				samples = append(samples, int16(sum/float32(channels)*32767))
			}
			if err == io.EOF {
				break
			}
			assertNoError(err)
		}
		return samples, audio.SampleRate(oggReader.SampleRate())
	}

	raw, err := io.ReadAll(rc)
	assertNoError(err)
	samples := make([]int16, len(raw)/audio.BytesPerSample)
	audio.BytesToSamples(samples, raw)
	return samples, inputRate
}

func play(ctx context.Context, pcm []byte, rate audio.SampleRate) {
	logger.Infof(ctx, "playing %d bytes at %dHz", len(pcm), rate)
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(rate),
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	assertNoError(err)
	<-ready

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	assertNoError(player.Close())
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
