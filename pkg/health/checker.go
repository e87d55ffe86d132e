package health

import (
	"context"
	"time"
)

// Probe checks one dependency (database, broker, ...) and returns an
// error describing why it is unhealthy.
type Probe func(ctx context.Context) error

// Checker runs a named set of probes and aggregates their results.
type Checker struct {
	probes map[string]Probe
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe)}
}

// Register adds a named probe. A name already registered is replaced.
func (c *Checker) Register(name string, probe Probe) {
	c.probes[name] = probe
}

// Run executes every registered probe and aggregates the report.
// Status is StatusHealthy only if every probe succeeds; a single
// probe failure degrades the whole report to StatusUnhealthy (there
// is no partial-degradation distinction worth making across Node/C2
// dependencies — either the database/broker is reachable or it isn't).
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Checks:    make(map[string]Check),
	}

	for name, probe := range c.probes {
		start := time.Now()
		err := probe(ctx)
		latency := time.Since(start)

		check := Check{Status: StatusHealthy, Latency: latency.String()}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Error = err.Error()
			report.Status = StatusUnhealthy
		}
		report.Checks[name] = check
	}

	return report
}
