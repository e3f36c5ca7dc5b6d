package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks cache performance counters. Always populated:
// observability is not optional for the Parameter Cache, matching the
// teacher's cache package convention.
type Statistics struct {
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
	timeouts  int64

	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics returns a zeroed statistics tracker with its clock started.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) Hit()      { atomic.AddInt64(&s.hits, 1) }
func (s *Statistics) Miss()     { atomic.AddInt64(&s.misses, 1) }
func (s *Statistics) Set()      { atomic.AddInt64(&s.sets, 1) }
func (s *Statistics) Delete()   { atomic.AddInt64(&s.deletes, 1) }
func (s *Statistics) Eviction() { atomic.AddInt64(&s.evictions, 1) }

// Timeout records a lookup that found an entry already past its TTL.
func (s *Statistics) Timeout() { atomic.AddInt64(&s.timeouts, 1) }

func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

func (s *Statistics) Hits() int64      { return atomic.LoadInt64(&s.hits) }
func (s *Statistics) Misses() int64    { return atomic.LoadInt64(&s.misses) }
func (s *Statistics) Sets() int64      { return atomic.LoadInt64(&s.sets) }
func (s *Statistics) Deletes() int64   { return atomic.LoadInt64(&s.deletes) }
func (s *Statistics) Evictions() int64 { return atomic.LoadInt64(&s.evictions) }
func (s *Statistics) Timeouts() int64  { return atomic.LoadInt64(&s.timeouts) }

func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// HitRatio returns hits / (hits+misses), or 0 with no traffic yet.
func (s *Statistics) HitRatio() float64 {
	hits, misses := s.Hits(), s.Misses()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Summary is a point-in-time snapshot of all counters, suitable for
// logging or a status endpoint.
type Summary struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Sets        int64         `json:"sets"`
	Deletes     int64         `json:"deletes"`
	Evictions   int64         `json:"evictions"`
	Timeouts    int64         `json:"timeouts"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	HitRatio    float64       `json:"hit_ratio"`
	Uptime      time.Duration `json:"uptime"`
}

func (s *Statistics) Summary() Summary {
	return Summary{
		Hits:        s.Hits(),
		Misses:      s.Misses(),
		Sets:        s.Sets(),
		Deletes:     s.Deletes(),
		Evictions:   s.Evictions(),
		Timeouts:    s.Timeouts(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		HitRatio:    s.HitRatio(),
		Uptime:      s.Uptime(),
	}
}
