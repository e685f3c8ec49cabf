package logging

import (
	"time"

	"golang.org/x/time/rate"
)

// ProgressSampler suppresses repetitive progress logs for one job. It emits
// when the percentage crosses a bucket boundary (default 5%) and, while the
// percentage is stuck, at most once per heartbeat interval so long encodes
// still show signs of life. It is not safe for concurrent use.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
	heartbeat  *rate.Limiter
}

// NewProgressSampler constructs a sampler. A non-positive bucket size falls
// back to 5; a non-positive interval disables heartbeats.
func NewProgressSampler(bucketSize float64, interval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	s := &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
	if interval > 0 {
		s.heartbeat = rate.NewLimiter(rate.Every(interval), 1)
	}
	return s
}

// ShouldLog reports whether a progress event should be logged. Negative
// percentages mean "unknown" and only pass on heartbeats.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			if s.heartbeat != nil {
				s.heartbeat.Allow()
			}
			return true
		}
	}
	return s.heartbeat != nil && s.heartbeat.Allow()
}

// Reset clears the bucket state (e.g. when a new job starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
}
