package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

const statsCacheTTL = constants.StatsCacheSeconds * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *attendance.Stats
	expiresAt time.Time
}

func (c *statsCache) get() (*attendance.Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *attendance.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	svc   *attendance.Service
	cache statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(svc *attendance.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// InvalidateCache clears the cached stats so the next request reads the stores
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// Get returns store counts and today's attendance
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}
	stats, err := h.svc.Stats()
	if err != nil {
		respondServiceError(w, "reading stats", err)
		return
	}
	h.cache.set(&stats)
	respondJSON(w, http.StatusOK, stats)
}
