package blogcache

import "fmt"

// Stats is a snapshot of the resolver's counters, plus derived rates.
// Consumed by operational tooling only, never by the rendering path.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Errors        uint64 `json:"errors"`
	Fallbacks     uint64 `json:"fallbacks"`
	TotalRequests uint64 `json:"totalRequests"`
	HitRate       string `json:"hitRate"`
	FallbackRate  string `json:"fallbackRate"`
}

type counters struct {
	hits      uint64
	misses    uint64
	errors    uint64
	fallbacks uint64
	total     uint64
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Errors:        c.errors,
		Fallbacks:     c.fallbacks,
		TotalRequests: c.total,
		HitRate:       "0%",
		FallbackRate:  "0%",
	}
	if c.total > 0 {
		s.HitRate = fmt.Sprintf("%.2f%%", float64(c.hits)/float64(c.total)*100)
		s.FallbackRate = fmt.Sprintf("%.2f%%", float64(c.fallbacks)/float64(c.total)*100)
	}
	return s
}

func (c *counters) reset() {
	*c = counters{}
}
