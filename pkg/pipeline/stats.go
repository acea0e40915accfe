package pipeline

import (
	"sync"
	"time"
)

// Stats accumulates running statistics over processed frames. It has its own
// lock, independent of the processing lock, so readers never stall the audio
// path and a snapshot is always internally consistent.
type Stats struct {
	locker sync.Mutex

	framesProcessed uint64
	speechFrames    uint64
	vadSum          float64
	vadMin          float32
	vadMax          float32
	timeSumMS       float64
	timeLastMS      float64
}

// StatsSnapshot is a coherent point-in-time view of the accumulated values.
type StatsSnapshot struct {
	FramesProcessed       uint64
	SpeechFrames          uint64
	SpeechDetectedPercent float64
	VADScoreAvg           float64
	VADScoreMin           float32
	VADScoreMax           float32
	ProcessingTimeTotalMS float64
	ProcessingTimeAvgMS   float64
	ProcessingTimeLastMS  float64
}

func (s *Stats) Record(result FrameResult, elapsed time.Duration) {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.framesProcessed++
	if result.IsSpeech {
		s.speechFrames++
	}
	s.vadSum += float64(result.VADProbability)
	if result.VADProbability < s.vadMin {
		s.vadMin = result.VADProbability
	}
	if result.VADProbability > s.vadMax {
		s.vadMax = result.VADProbability
	}
	elapsedMS := elapsed.Seconds() * 1000
	s.timeSumMS += elapsedMS
	s.timeLastMS = elapsedMS
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.locker.Lock()
	defer s.locker.Unlock()

	snapshot := StatsSnapshot{
		FramesProcessed:       s.framesProcessed,
		SpeechFrames:          s.speechFrames,
		VADScoreMin:           s.vadMin,
		VADScoreMax:           s.vadMax,
		ProcessingTimeTotalMS: s.timeSumMS,
		ProcessingTimeLastMS:  s.timeLastMS,
	}
	if s.framesProcessed > 0 {
		snapshot.SpeechDetectedPercent = 100 * float64(s.speechFrames) / float64(s.framesProcessed)
		snapshot.VADScoreAvg = s.vadSum / float64(s.framesProcessed)
		snapshot.ProcessingTimeAvgMS = s.timeSumMS / float64(s.framesProcessed)
	}
	return snapshot
}

// Reset returns every counter to its initial value. The min/max sentinels go
// back to 1 and 0 respectively, so the next recorded frame establishes both
// bounds unconditionally.
func (s *Stats) Reset() {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.framesProcessed = 0
	s.speechFrames = 0
	s.vadSum = 0
	s.vadMin = 1
	s.vadMax = 0
	s.timeSumMS = 0
	s.timeLastMS = 0
}
