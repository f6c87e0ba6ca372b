package worker

import (
	"syscall"
	"time"
)

// resourceSampler tracks CPU%/RSS deltas between successive metrics_interval ticks.
type resourceSampler struct {
	lastWall time.Time
	lastCPU  time.Duration
}

// newResourceSampler primes the sampler with the current usage snapshot.
func newResourceSampler() *resourceSampler {
	s := &resourceSampler{lastWall: time.Now()}
	s.lastCPU = cpuTimeNow()
	return s
}

// sample returns the CPU percentage consumed since the previous sample (0-100,
// possibly >100 on multi-core work) and the peak resident set size in bytes.
func (s *resourceSampler) sample() (cpuPercent float64, rssBytes uint64) {
	now := time.Now()
	cpuNow := cpuTimeNow()

	wallDelta := now.Sub(s.lastWall)
	cpuDelta := cpuNow - s.lastCPU
	if wallDelta > 0 {
		cpuPercent = float64(cpuDelta) / float64(wallDelta) * 100
	}

	s.lastWall = now
	s.lastCPU = cpuNow
	return cpuPercent, rssBytesNow()
}

// cpuTimeNow returns cumulative user+system CPU time consumed by this process.
func cpuTimeNow() time.Duration {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return user + sys
}

// rssBytesNow returns the process's peak resident set size (ru_maxrss) in
// bytes, not its current one.
func rssBytesNow() uint64 {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// Linux reports ru_maxrss in kilobytes.
	return uint64(ru.Maxrss) * 1024
}
