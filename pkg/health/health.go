package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/resilience"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

type registered struct {
	check    Check
	critical bool
}

// Checker manages health checks for the system
type Checker struct {
	checks      map[string]registered
	components  map[string]*Component
	checkPeriod time.Duration
	timeout     time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	checker := &Checker{
		checks:      make(map[string]registered),
		components:  make(map[string]*Component),
		checkPeriod: checkPeriod,
		timeout:     2 * time.Second,
		log:         log,
	}

	checker.RegisterCheck("self", false, func(context.Context) (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = registered{check: check, critical: critical}
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Critical:    critical,
		Description: "Not checked yet",
	}
}

// RunChecks executes all registered health checks. Checks run without the
// lock held so a slow dependency does not block readers.
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mutex.RUnlock()

	for name, r := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		status, description, err := r.check(checkCtx)
		cancel()

		c.mutex.Lock()
		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = time.Now()
		if err != nil {
			component.Error = err.Error()
		} else {
			component.Error = ""
		}
		c.mutex.Unlock()

		if err != nil {
			c.log.Error("Health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		} else {
			c.log.Debug("Health check completed",
				"component", name,
				"status", string(status),
			)
		}
	}
}

// Start runs the checks immediately and then periodically until ctx is cancelled
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// GetStatus returns a copy of every component, sorted by name
func (c *Checker) GetStatus() []Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]Component, 0, len(c.components))
	for _, v := range c.components {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// IsSystemHealthy returns true if no critical component is down
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, component := range c.components {
		if component.Critical && component.Status == StatusDown {
			return false
		}
	}
	return true
}

// HTTPHandler returns an HTTP handler for health checks
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := c.IsSystemHealthy()

		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			status = "unavailable"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		response := map[string]any{
			"status":     status,
			"timestamp":  time.Now().UTC(),
			"components": c.GetStatus(),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			c.log.Error("Failed to encode health check response", "error", err.Error())
		}
	}
}

// RegisterDatabaseCheck pings the outbox database
func (c *Checker) RegisterDatabaseCheck(db *gorm.DB) {
	c.RegisterCheck("database", true, func(ctx context.Context) (Status, string, error) {
		sqlDB, err := db.DB()
		if err != nil {
			return StatusDown, "Database handle unavailable", err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return StatusDown, "Database connection failed", err
		}
		return StatusUp, "Database connection is established", nil
	})
}

// RegisterRedisCheck pings the redis server used for escalation streams
func (c *Checker) RegisterRedisCheck(client redis.Cmdable) {
	c.RegisterCheck("redis", true, func(ctx context.Context) (Status, string, error) {
		start := time.Now()
		if err := client.Ping(ctx).Err(); err != nil {
			return StatusDown, "Redis ping failed", err
		}
		return StatusUp, fmt.Sprintf("Redis is responding (latency: %s)", time.Since(start)), nil
	})
}

// RegisterBreakerCheck reports notification sinks whose circuit is open as degraded
func (c *Checker) RegisterBreakerCheck(name string, stats func() []resilience.Stats) {
	c.RegisterCheck(name, false, func(context.Context) (Status, string, error) {
		var open []string
		all := stats()
		for _, s := range all {
			if s.State == resilience.StateOpen {
				open = append(open, s.Name)
			}
		}
		if len(open) > 0 {
			return StatusDegraded, fmt.Sprintf("%d of %d sinks unavailable", len(open), len(all)),
				fmt.Errorf("circuit open for %v", open)
		}
		return StatusUp, fmt.Sprintf("%d sinks available", len(all)), nil
	})
}
