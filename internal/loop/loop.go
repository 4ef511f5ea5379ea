/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package loop drives one service's autoscaler.State on a fixed interval,
// applying a per-tick budget so a slow target calculator or provisioner
// never causes two ticks to overlap or a tick to partially apply its
// decisions. Modeled on the ticker/ctx-cancel shape the example pack's
// own autoscaler loop uses (New/Start/Stop, select on ctx.Done/ticker.C).
package loop

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/skyfleet/autoscaler/internal/autoscaler"
	"github.com/skyfleet/autoscaler/internal/decision"
	"github.com/skyfleet/autoscaler/internal/logging"
	"github.com/skyfleet/autoscaler/internal/metrics"
	"github.com/skyfleet/autoscaler/internal/metricwindow"
	"github.com/skyfleet/autoscaler/internal/replicaview"
	"github.com/skyfleet/autoscaler/internal/targetcalc"
)

// DefaultTickBudget bounds how long a single tick's computation may run
// before the loop abandons it rather than risk applying a stale or
// partial decision set.
const DefaultTickBudget = 2 * time.Second

// ReplicaSource supplies the current replica snapshot the provisioner
// owns; an external collaborator (cloud adapter, orchestrator API) per
// the Non-goals.
type ReplicaSource interface {
	Replicas(ctx context.Context) ([]replicaview.Info, error)
}

// Provisioner applies an ordered decision list. Errors are opaque
// (ProvisionerError, §7) and only logged: the loop does not retry within
// the same tick, leaving retry policy to the provisioner implementation.
type Provisioner interface {
	Apply(ctx context.Context, decisions []decision.AutoscalerDecision) error
}

// Options configures a Loop.
type Options struct {
	Interval          time.Duration
	TickBudget        time.Duration
	StrictMaxCapacity bool
	ReplaceCollapsing bool
}

// Loop drives one service's State on its own goroutine.
type Loop struct {
	serviceName string
	state       *autoscaler.State
	replicas    ReplicaSource
	aggregator  targetcalc.RequestAggregator
	provisioner Provisioner
	emitter     *metrics.Emitter
	opts        Options

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Loop. aggregator may be nil (QPS variant with no
// wired aggregator falls back to min_replicas, per targetcalc).
func New(
	serviceName string,
	state *autoscaler.State,
	replicas ReplicaSource,
	aggregator targetcalc.RequestAggregator,
	provisioner Provisioner,
	emitter *metrics.Emitter,
	opts Options,
) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.TickBudget <= 0 {
		opts.TickBudget = DefaultTickBudget
	}
	return &Loop{
		serviceName: serviceName,
		state:       state,
		replicas:    replicas,
		aggregator:  aggregator,
		provisioner: provisioner,
		emitter:     emitter,
		opts:        opts,
	}
}

// Start launches the loop's ticker goroutine. ctx governs the loop's
// entire lifetime; cancel it (or call Stop) to end the loop.
func (l *Loop) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run()
}

// Stop ends the loop and blocks until its goroutine has exited.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	log := logging.FromContext(l.ctx).WithValues("service_name", l.serviceName)

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.tick(log)
		}
	}
}

// Ingest admits samples into the service's metric window. Safe to call
// concurrently with an in-flight tick from a separate goroutine (e.g. an
// HTTP handler owned by the external ingestion transport).
func (l *Loop) Ingest(samples []metricwindow.Sample) {
	l.state.Ingest(samples)
}

// nowSeconds returns the current time as a Unix-epoch float, the time base
// internal/metricwindow and internal/targetcalc operate on throughout.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (l *Loop) tick(log logr.Logger) {
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.TickBudget)
	defer cancel()

	start := time.Now()
	replicas, err := l.replicas.Replicas(ctx)
	if err != nil {
		log.Error(err, "failed to fetch replica snapshot, skipping tick")
		return
	}

	var opts []decision.Option
	if l.opts.ReplaceCollapsing {
		opts = append(opts, decision.WithReplaceCollapsing(true))
	}

	decisions, calcErr := l.state.Tick(ctx, l.aggregator, replicas, nowSeconds(), l.opts.StrictMaxCapacity, opts...)
	if ctx.Err() != nil {
		// Budget exceeded mid-computation: discard this tick's decisions
		// entirely rather than partially apply them.
		log.Error(ctx.Err(), "tick exceeded budget, discarding decisions")
		return
	}
	if calcErr != nil {
		log.Error(calcErr, "target calculator reported an error this tick, fell back to min_replicas")
	}

	if l.emitter != nil {
		_ = l.emitter.ObserveDecisionGeneratorDuration(l.serviceName, time.Since(start).Seconds())
		alive := 0
		for _, r := range replicas {
			if r.Alive() {
				alive++
			}
		}
		_ = l.emitter.EmitReplicaMetrics(l.serviceName, alive, l.state.TargetNumReplicas())
	}

	if len(decisions) == 0 {
		return
	}
	if err := l.provisioner.Apply(ctx, decisions); err != nil {
		log.Error(err, "provisioner failed to apply decisions")
		return
	}
	if l.emitter != nil {
		for _, d := range decisions {
			_ = l.emitter.EmitScaling(l.serviceName, string(d.Operator), "tick")
		}
	}
	log.Info("applied decisions", "count", len(decisions))
}
