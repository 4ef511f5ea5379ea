package loop_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skyfleet/autoscaler/internal/autoscaler"
	"github.com/skyfleet/autoscaler/internal/config"
	"github.com/skyfleet/autoscaler/internal/decision"
	"github.com/skyfleet/autoscaler/internal/loop"
	"github.com/skyfleet/autoscaler/internal/metricwindow"
	"github.com/skyfleet/autoscaler/internal/replicaview"
)

type fixedReplicas struct {
	mu sync.Mutex
	rs []replicaview.Info
}

func (f *fixedReplicas) set(rs []replicaview.Info) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rs = rs
}

func (f *fixedReplicas) Replicas(ctx context.Context) ([]replicaview.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rs, nil
}

type countingProvisioner struct {
	count int32
	last  atomic.Value
}

func (p *countingProvisioner) Apply(ctx context.Context, ds []decision.AutoscalerDecision) error {
	atomic.AddInt32(&p.count, 1)
	p.last.Store(ds)
	return nil
}

var _ = Describe("Loop", func() {
	It("ingests concurrently with ticking without racing the metric window", func() {
		spec := config.ServiceSpec{
			MinReplicas: 0, MaxReplicas: 10,
			AutoscalingMetric: &metricwindow.Spec{
				Name: "qps", TargetPerReplica: 5, Kind: metricwindow.KindGauge,
				Aggregation: metricwindow.AggregationSum, WindowSeconds: 300, StaleAfterSeconds: 300,
			},
		}
		st, err := autoscaler.New("svc-loop", spec)
		Expect(err).NotTo(HaveOccurred())

		replicas := &fixedReplicas{}
		provisioner := &countingProvisioner{}
		l := loop.New("svc-loop", st, replicas, nil, provisioner, nil, loop.Options{
			Interval:   10 * time.Millisecond,
			TickBudget: 500 * time.Millisecond,
		})

		ctx, cancel := context.WithCancel(context.Background())
		l.Start(ctx)

		// Timestamps are anchored to wall-clock time, which the loop's ticks
		// use as "now", so the samples are fresh and drive a non-zero target.
		base := float64(time.Now().Unix())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Ingest([]metricwindow.Sample{{Name: "qps", Value: float64(i), Timestamp: base + float64(i)/100, SourceID: "a"}})
			}
		}()
		wg.Wait()

		Eventually(func() int32 { return atomic.LoadInt32(&provisioner.count) }, time.Second, 5*time.Millisecond).
			Should(BeNumerically(">=", 1))

		cancel()
		l.Stop()
	})
})
