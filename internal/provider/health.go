package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultCheckInterval = 30 * time.Second
	defaultCheckTimeout  = 10 * time.Second
	unhealthyThreshold   = 3
)

// HealthStatus represents the current health state of the provider.
type HealthStatus struct {
	Healthy             bool
	LastCheck           time.Time
	ConsecutiveFailures int
	LastError           string
}

// HealthChecker periodically checks the provider and tracks its status.
// A provider starts healthy and is marked unhealthy only after
// unhealthyThreshold consecutive failures.
type HealthChecker struct {
	mu            sync.RWMutex
	client        Client
	status        HealthStatus
	checkInterval time.Duration
	checkTimeout  time.Duration
	log           zerolog.Logger
	stopCh        chan struct{}
	stopped       chan struct{}
}

// NewHealthChecker creates a health checker for client.
func NewHealthChecker(client Client, log zerolog.Logger) *HealthChecker {
	return &HealthChecker{
		client:        client,
		status:        HealthStatus{Healthy: true},
		checkInterval: defaultCheckInterval,
		checkTimeout:  defaultCheckTimeout,
		log:           log,
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start begins the background health check loop.
func (hc *HealthChecker) Start() {
	go hc.run()
}

// Stop signals the health check loop to terminate and waits for it to finish.
func (hc *HealthChecker) Stop() {
	close(hc.stopCh)
	<-hc.stopped
}

// IsHealthy reports whether the provider is currently considered healthy.
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status.Healthy
}

// Status returns a snapshot of the provider's health status.
func (hc *HealthChecker) Status() HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status
}

func (hc *HealthChecker) run() {
	defer close(hc.stopped)

	// Run an initial check immediately.
	hc.check()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.stopCh:
			return
		case <-ticker.C:
			hc.check()
		}
	}
}

func (hc *HealthChecker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), hc.checkTimeout)
	defer cancel()

	err := hc.client.HealthCheck(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.status.LastCheck = time.Now()

	if err != nil {
		hc.status.ConsecutiveFailures++
		hc.status.LastError = err.Error()
		if hc.status.ConsecutiveFailures >= unhealthyThreshold {
			if hc.status.Healthy {
				hc.log.Warn().Err(err).Str("provider", hc.client.Name()).Msg("provider marked unhealthy")
			}
			hc.status.Healthy = false
		}
		return
	}

	// 1 success resets to healthy.
	if !hc.status.Healthy {
		hc.log.Info().Str("provider", hc.client.Name()).Msg("provider recovered")
	}
	hc.status.ConsecutiveFailures = 0
	hc.status.Healthy = true
	hc.status.LastError = ""
}
