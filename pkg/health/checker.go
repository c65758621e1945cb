package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"trial-sponsor-tracker/pkg/logging"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker monitors the health of all system components
type HealthChecker struct {
	mu           sync.RWMutex
	dependencies map[string]HealthCheckFunc
	critical     map[string]bool
	version      string
	startTime    time.Time
	timeout      time.Duration
	logger       *zap.Logger
}

// HealthStatus represents the overall system health
type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    HealthSummary              `json:"summary"`
}

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	LastChecked  time.Time     `json:"last_checked"`
	Error        string        `json:"error,omitempty"`
	Details      interface{}   `json:"details,omitempty"`
}

// HealthSummary provides a high-level health overview
type HealthSummary struct {
	TotalComponents     int    `json:"total_components"`
	HealthyComponents   int    `json:"healthy_components"`
	UnhealthyComponents int    `json:"unhealthy_components"`
	OverallHealth       string `json:"overall_health"`
}

// HealthCheckFunc is a function that checks the health of a component
type HealthCheckFunc func(ctx context.Context) (ComponentHealth, error)

// NewHealthChecker creates a health checker with no components registered
func NewHealthChecker(version string, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		dependencies: make(map[string]HealthCheckFunc),
		critical:     make(map[string]bool),
		version:      version,
		startTime:    time.Now(),
		timeout:      5 * time.Second,
		logger:       logging.OrNop(logger),
	}
}

// RegisterHealthCheck adds a component check. Critical components gate
// readiness.
func (hc *HealthChecker) RegisterHealthCheck(name string, checkFunc HealthCheckFunc, critical bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.dependencies[name] = checkFunc
	if critical {
		hc.critical[name] = true
	}
}

// CheckHealth performs a health check of all components
func (hc *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(hc.dependencies))
	for name, fn := range hc.dependencies {
		checks[name] = fn
	}
	hc.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checks))
	for name, checkFunc := range checks {
		components[name] = hc.checkComponentHealth(ctx, checkFunc)
	}

	summary := summarize(components)
	return &HealthStatus{
		Status:     summary.OverallHealth,
		Timestamp:  time.Now(),
		Version:    hc.version,
		Uptime:     time.Since(hc.startTime),
		Components: components,
		Summary:    summary,
	}
}

func summarize(components map[string]ComponentHealth) HealthSummary {
	healthyCount := 0
	totalCount := len(components)
	for _, component := range components {
		if component.Status == StatusHealthy {
			healthyCount++
		}
	}

	var overallStatus string
	if healthyCount == totalCount {
		overallStatus = StatusHealthy
	} else if healthyCount > totalCount/2 {
		overallStatus = StatusDegraded
	} else {
		overallStatus = StatusUnhealthy
	}

	return HealthSummary{
		TotalComponents:     totalCount,
		HealthyComponents:   healthyCount,
		UnhealthyComponents: totalCount - healthyCount,
		OverallHealth:       overallStatus,
	}
}

// checkComponentHealth executes one check with a timeout; errors become an
// unhealthy component
func (hc *HealthChecker) checkComponentHealth(ctx context.Context, checkFunc HealthCheckFunc) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()

	componentHealth, err := checkFunc(checkCtx)
	if err != nil {
		return ComponentHealth{
			Status:       StatusUnhealthy,
			ResponseTime: time.Since(start),
			LastChecked:  time.Now(),
			Error:        err.Error(),
		}
	}

	if componentHealth.Status == "" {
		componentHealth.Status = StatusHealthy
	}
	if componentHealth.ResponseTime == 0 {
		componentHealth.ResponseTime = time.Since(start)
	}
	if componentHealth.LastChecked.IsZero() {
		componentHealth.LastChecked = time.Now()
	}

	return componentHealth
}

// GetComponentHealth returns the health of a specific component
func (hc *HealthChecker) GetComponentHealth(ctx context.Context, componentName string) (*ComponentHealth, error) {
	hc.mu.RLock()
	checkFunc, exists := hc.dependencies[componentName]
	hc.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("component '%s' not found", componentName)
	}

	componentHealth := hc.checkComponentHealth(ctx, checkFunc)
	return &componentHealth, nil
}

// IsHealthy returns true if all components are healthy
func (hc *HealthChecker) IsHealthy(ctx context.Context) bool {
	return hc.CheckHealth(ctx).Status == StatusHealthy
}

// GetReadinessStatus checks only the critical components
func (hc *HealthChecker) GetReadinessStatus(ctx context.Context) *HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheckFunc)
	for name := range hc.critical {
		checks[name] = hc.dependencies[name]
	}
	hc.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checks))
	for name, checkFunc := range checks {
		components[name] = hc.checkComponentHealth(ctx, checkFunc)
	}

	summary := summarize(components)
	status := "ready"
	if summary.HealthyComponents != summary.TotalComponents {
		status = "not_ready"
	}
	summary.OverallHealth = status

	return &HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Version:    hc.version,
		Uptime:     time.Since(hc.startTime),
		Components: components,
		Summary:    summary,
	}
}

// GetLivenessStatus reports that the process is up without touching
// dependencies
func (hc *HealthChecker) GetLivenessStatus(ctx context.Context) *HealthStatus {
	return &HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hc.version,
		Uptime:    time.Since(hc.startTime),
		Summary: HealthSummary{
			TotalComponents:   1,
			HealthyComponents: 1,
			OverallHealth:     "alive",
		},
	}
}

// StartPeriodicHealthChecks runs health checks in the background until ctx
// is done
func (hc *HealthChecker) StartPeriodicHealthChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthStatus := hc.CheckHealth(ctx)
			if healthStatus.Status != StatusHealthy {
				hc.logger.Warn("Health check warning",
					zap.String("status", healthStatus.Status),
					zap.Int("healthy", healthStatus.Summary.HealthyComponents),
					zap.Int("total", healthStatus.Summary.TotalComponents))
			}
		}
	}
}

// PostgresCheck checks a PostgreSQL pool
func PostgresCheck(db *sql.DB) HealthCheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		if db == nil {
			return ComponentHealth{}, fmt.Errorf("PostgreSQL client not initialized")
		}

		var result int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return ComponentHealth{}, fmt.Errorf("PostgreSQL query failed: %w", err)
		}

		stats := db.Stats()
		return ComponentHealth{
			Status: StatusHealthy,
			Details: map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
			},
		}, nil
	}
}

// RedisCheck pings Redis and reports the length of the row stream
func RedisCheck(client *redis.Client, stream string) HealthCheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		if client == nil {
			return ComponentHealth{}, fmt.Errorf("Redis client not initialized")
		}

		pong, err := client.Ping(ctx).Result()
		if err != nil {
			return ComponentHealth{}, fmt.Errorf("Redis ping failed: %w", err)
		}
		if pong != "PONG" {
			return ComponentHealth{}, fmt.Errorf("Redis ping returned unexpected response: %s", pong)
		}

		details := map[string]interface{}{"ping_response": pong}
		if stream != "" {
			if n, err := client.XLen(ctx, stream).Result(); err == nil {
				details["stream_length"] = n
			}
		}

		return ComponentHealth{Status: StatusHealthy, Details: details}, nil
	}
}

// Neo4jCheck verifies driver connectivity
func Neo4jCheck(driver neo4j.DriverWithContext) HealthCheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		if driver == nil {
			return ComponentHealth{}, fmt.Errorf("Neo4j driver not initialized")
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return ComponentHealth{}, fmt.Errorf("Neo4j connectivity failed: %w", err)
		}
		return ComponentHealth{Status: StatusHealthy}, nil
	}
}

// Pinger is anything that can cheaply confirm it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger, such as the registry client
func PingCheck(target Pinger) HealthCheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		if err := target.Ping(ctx); err != nil {
			return ComponentHealth{}, err
		}
		return ComponentHealth{Status: StatusHealthy}, nil
	}
}
