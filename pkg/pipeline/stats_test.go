package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	t.Run("Accumulation", func(t *testing.T) {
		var s Stats
		s.Reset()
		s.Record(FrameResult{VADProbability: 0.2, IsSpeech: false}, 2*time.Millisecond)
		s.Record(FrameResult{VADProbability: 0.8, IsSpeech: true}, 4*time.Millisecond)
		s.Record(FrameResult{VADProbability: 0.5, IsSpeech: true}, 3*time.Millisecond)

		snapshot := s.Snapshot()
		assert.EqualValues(t, 3, snapshot.FramesProcessed)
		assert.EqualValues(t, 2, snapshot.SpeechFrames)
		assert.InDelta(t, 100*2.0/3.0, snapshot.SpeechDetectedPercent, 1e-9)
		assert.InDelta(t, 0.5, snapshot.VADScoreAvg, 1e-6)
		assert.InDelta(t, 0.2, float64(snapshot.VADScoreMin), 1e-6)
		assert.InDelta(t, 0.8, float64(snapshot.VADScoreMax), 1e-6)
		assert.InDelta(t, 9, snapshot.ProcessingTimeTotalMS, 1e-9)
		assert.InDelta(t, 3, snapshot.ProcessingTimeAvgMS, 1e-9)
		assert.InDelta(t, 3, snapshot.ProcessingTimeLastMS, 1e-9)
	})

	t.Run("EmptySnapshot", func(t *testing.T) {
		var s Stats
		s.Reset()
		snapshot := s.Snapshot()
		assert.Zero(t, snapshot.FramesProcessed)
		assert.Zero(t, snapshot.SpeechDetectedPercent)
		assert.Zero(t, snapshot.VADScoreAvg)
		assert.Zero(t, snapshot.ProcessingTimeAvgMS)
		assert.EqualValues(t, 1, snapshot.VADScoreMin)
		assert.EqualValues(t, 0, snapshot.VADScoreMax)
	})

	t.Run("ResetRestoresSentinels", func(t *testing.T) {
		var s Stats
		s.Reset()
		s.Record(FrameResult{VADProbability: 0.4, IsSpeech: true}, time.Millisecond)
		s.Reset()

		s.Record(FrameResult{VADProbability: 0.6, IsSpeech: false}, time.Millisecond)
		snapshot := s.Snapshot()
		assert.EqualValues(t, 1, snapshot.FramesProcessed)
		assert.Zero(t, snapshot.SpeechFrames)
		assert.InDelta(t, 0.6, float64(snapshot.VADScoreMin), 1e-6)
		assert.InDelta(t, 0.6, float64(snapshot.VADScoreMax), 1e-6)
	})
}
