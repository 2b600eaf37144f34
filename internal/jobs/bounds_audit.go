package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/service"
)

// Auditor is the part of service.AuditService the job drives.
type Auditor interface {
	ClampOutOfBounds(ctx context.Context) (*service.AuditReport, error)
}

// BoundsAuditor periodically clamps stored values that escaped their bounds.
// With the version guard enabled it should find nothing; it exists for
// stores written without the guard and for manual edits.
type BoundsAuditor struct {
	auditor  Auditor
	log      *logger.Logger
	interval time.Duration
	delay    time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewBoundsAuditor creates a new bounds audit job
func NewBoundsAuditor(auditor Auditor, interval time.Duration, log *logger.Logger) *BoundsAuditor {
	if interval == 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BoundsAuditor{
		auditor:  auditor,
		log:      log.With("job", "bounds_audit"),
		interval: interval,
		delay:    5 * time.Second,
		timeout:  2 * time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the audit loop
func (a *BoundsAuditor) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run()
	a.log.Info("bounds auditor started", "interval", a.interval)
}

// Stop gracefully stops the audit loop and waits for a pass in progress
func (a *BoundsAuditor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	close(a.stopCh)
	a.wg.Wait()
	a.log.Info("bounds auditor stopped")
}

func (a *BoundsAuditor) run() {
	defer a.wg.Done()

	// let the store finish starting up
	select {
	case <-time.After(a.delay):
	case <-a.stopCh:
		return
	}
	a.audit()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.audit()
		case <-a.stopCh:
			return
		}
	}
}

func (a *BoundsAuditor) audit() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if _, err := a.RunOnce(ctx); err != nil {
		a.log.Error("bounds audit failed", "error", err)
	}
}

// RunOnce runs a single audit pass (for testing or manual trigger)
func (a *BoundsAuditor) RunOnce(ctx context.Context) (*service.AuditReport, error) {
	start := time.Now()
	report, err := a.auditor.ClampOutOfBounds(ctx)
	if report != nil {
		a.log.Info("bounds audit finished", "repaired", report.Total, "duration", time.Since(start))
	}
	return report, err
}

// IsRunning returns whether the auditor is running
func (a *BoundsAuditor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
