// Package loop runs the periodic control cycle: every tick it evaluates each
// configured actuator against the latest readings and dispatches commands on
// state changes. It never blocks on broker I/O inside the decision path.
package loop

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/climate"
	"github.com/hglynn/labclimate/internal/logger"
	"github.com/hglynn/labclimate/internal/metrics"
	"github.com/hglynn/labclimate/internal/mqtt"
	"github.com/hglynn/labclimate/internal/relay"
	"github.com/hglynn/labclimate/internal/rules"
	"github.com/hglynn/labclimate/internal/state"
)

// Source yields the current catalog and state memory; a reload swaps both.
type Source func() (*catalog.Catalog, *state.Memory)

// SystemPublisher emits controller lifecycle events.
type SystemPublisher interface {
	PublishSystem(event mqtt.SystemEvent) error
}

// Counts tallies commanded transitions since startup.
type Counts struct {
	On  int
	Off int
}

// Options configures a Loop.
type Options struct {
	Source     Source
	Dispatcher mqtt.Dispatcher
	// Relay drives actuators with the gpio driver; nil disables them.
	Relay relay.Board
	// System receives heartbeat events; nil disables heartbeats.
	System            SystemPublisher
	HeartbeatInterval time.Duration

	Metrics *metrics.Metrics

	StalenessTimeout time.Duration
	StalePolicy      climate.StalePolicy
	// FeedbackGrace is how long commanded and observed may disagree before
	// the command is re-sent.
	FeedbackGrace time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Loop is the periodic controller.
type Loop struct {
	opts      Options
	startTime time.Time

	mu            sync.Mutex
	counts        Counts
	lastHeartbeat time.Time
}

// New creates a Loop. Run must be given the tick channel; the caller owns
// the ticker so tests can drive time explicitly.
func New(opts Options) *Loop {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := opts.Now()
	return &Loop{
		opts:          opts,
		startTime:     now,
		lastHeartbeat: now,
	}
}

// Run consumes ticks until the context is canceled.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			logger.L().Info("loop: shutting down")
			return nil
		case <-tick:
			l.Tick()
			l.checkHeartbeat()
		}
	}
}

// Tick evaluates every configured actuator once. Per-actuator problems are
// contained: logged, counted, and skipped, never fatal.
func (l *Loop) Tick() {
	now := l.opts.Now()
	cat, mem := l.opts.Source()

	for labID, lab := range cat.Labs {
		reading, present := freshestReading(mem, labID, lab)
		stale := rules.IsStale(reading, present, now, l.opts.StalenessTimeout)

		for _, a := range lab.Actuators {
			l.evaluate(mem, cat, labID, a, reading, stale, now)
		}
	}
}

func (l *Loop) evaluate(mem *state.Memory, cat *catalog.Catalog, labID string, a catalog.Actuator,
	reading climate.Reading, stale bool, now time.Time) {
	thresholds, ok := cat.Thresholds(labID, a.Kind)
	if !ok {
		if l.opts.Metrics != nil {
			l.opts.Metrics.ActuatorsSkipped.WithLabelValues(labID).Inc()
		}
		logger.L().Warnf("loop: %s/%s has no %s thresholds, skipped", labID, a.ID, a.Kind)
		return
	}

	prior, ok := mem.Actuator(labID, a.ID)
	if !ok {
		logger.L().Warnf("loop: %s/%s missing from state memory, skipped", labID, a.ID)
		return
	}

	d := rules.Evaluate(a.Kind, reading, stale, prior, thresholds, l.opts.StalePolicy, now)
	if d.Held && l.opts.Metrics != nil {
		l.opts.Metrics.StaleEvaluations.WithLabelValues(labID).Inc()
	}

	switch {
	case d.Changed:
		l.dispatch(mem, labID, a, d.Output, now, "transition")
	case l.diverged(prior, now):
		// Observed state disagrees with what we commanded for longer than
		// the grace window: the command was lost somewhere, send it again.
		l.dispatch(mem, labID, a, prior.Commanded, now, "reconcile")
	}
}

// diverged reports whether feedback reconciliation should re-send. Devices
// that have never reported feedback are left alone.
func (l *Loop) diverged(prior climate.ActuatorState, now time.Time) bool {
	if prior.ObservedAt.IsZero() || prior.Observed == prior.Commanded {
		return false
	}
	return now.Sub(prior.LastChange) > l.opts.FeedbackGrace
}

func (l *Loop) dispatch(mem *state.Memory, labID string, a catalog.Actuator, out climate.Output,
	now time.Time, why string) {
	var err error
	switch a.Driver {
	case catalog.DriverGPIO:
		if l.opts.Relay == nil {
			logger.L().Warnf("loop: %s/%s uses gpio driver but no relay board is attached", labID, a.ID)
			return
		}
		err = l.opts.Relay.Set(a.GPIOLine, out)
	default:
		err = l.opts.Dispatcher.PublishCommand(mqtt.Command{
			Lab:      labID,
			Actuator: a.ID,
			Action:   out,
			Source:   "controller",
			At:       now,
		})
	}
	if err != nil {
		// Commanded state stays untouched, so the next tick re-attempts.
		logger.L().Errorf("loop: dispatch %s %s/%s -> %s: %v", why, labID, a.ID, out, err)
		return
	}

	if err := mem.SetCommanded(labID, a.ID, out, now); err != nil {
		logger.L().Errorf("loop: record command %s/%s: %v", labID, a.ID, err)
		return
	}
	// A directly-driven relay has no feedback channel; what we set is what
	// there is.
	if a.Driver == catalog.DriverGPIO {
		if err := mem.SetObserved(labID, a.ID, out, now); err != nil {
			logger.L().Errorf("loop: record relay state %s/%s: %v", labID, a.ID, err)
		}
	}

	if l.opts.Metrics != nil {
		l.opts.Metrics.CommandsPublished.WithLabelValues(labID, string(out)).Inc()
		l.opts.Metrics.Transitions.WithLabelValues(string(a.Kind), string(out)).Inc()
	}

	l.mu.Lock()
	if out == climate.On {
		l.counts.On++
	} else {
		l.counts.Off++
	}
	l.mu.Unlock()

	logger.L().Infof("loop: %s %s/%s (%s) -> %s", why, labID, a.ID, a.Kind, out)
}

// freshestReading picks the most recent reading among the lab's sensors.
// Multiple sensors per lab are redundant probes of the same room; the newest
// sample wins.
func freshestReading(mem *state.Memory, labID string, lab *catalog.Lab) (climate.Reading, bool) {
	var (
		best  climate.Reading
		found bool
	)
	for _, sensorID := range lab.Sensors {
		r, ok := mem.Reading(labID, sensorID)
		if !ok {
			continue
		}
		if !found || r.ObservedAt.After(best.ObservedAt) {
			best = r
			found = true
		}
	}
	return best, found
}

// CountsSnapshot returns the transition tallies so far.
func (l *Loop) CountsSnapshot() Counts {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts
}

// heartbeatPayload is the wire body of a heartbeat system event.
type heartbeatPayload struct {
	System struct {
		Timestamp      string `json:"timestamp"`
		Event          string `json:"event"`
		UptimeSeconds  int64  `json:"uptime_seconds"`
		TransitionsOn  int    `json:"transitions_on"`
		TransitionsOff int    `json:"transitions_off"`
	} `json:"system"`
}

func (l *Loop) checkHeartbeat() {
	if l.opts.System == nil || l.opts.HeartbeatInterval <= 0 {
		return
	}

	now := l.opts.Now()

	l.mu.Lock()
	due := now.Sub(l.lastHeartbeat) >= l.opts.HeartbeatInterval
	if due {
		l.lastHeartbeat = now
	}
	counts := l.counts
	l.mu.Unlock()

	if !due {
		return
	}

	var p heartbeatPayload
	p.System.Timestamp = now.UTC().Format(time.RFC3339)
	p.System.Event = "HEARTBEAT"
	p.System.UptimeSeconds = int64(now.Sub(l.startTime).Seconds())
	p.System.TransitionsOn = counts.On
	p.System.TransitionsOff = counts.Off
	raw, err := json.Marshal(p)
	if err != nil {
		logger.L().Errorf("loop: heartbeat payload: %v", err)
		return
	}

	event := mqtt.SystemEvent{Timestamp: now, Event: "HEARTBEAT", RawPayload: raw}
	if err := l.opts.System.PublishSystem(event); err != nil {
		logger.L().Warnf("loop: heartbeat publish: %v", err)
	}
}
