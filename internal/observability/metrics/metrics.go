// Package metrics exposes prometheus instruments for the workflow engine and
// the billing scheduler. Instruments are process-wide singletons so domain
// code can record without plumbing a registry through every constructor.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
}

type SchedulerMetrics struct {
	runs           prometheus.Counter
	billingsIssued prometheus.Counter
	metersSkipped  prometheus.Counter
	metersFailed   prometheus.Counter
	runErrors      prometheus.Counter
}

var (
	workflowOnce  sync.Once
	workflow      *WorkflowMetrics
	schedulerOnce sync.Once
	scheduler     *SchedulerMetrics
)

func Workflow() *WorkflowMetrics {
	workflowOnce.Do(func() {
		workflow = &WorkflowMetrics{
			transitions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "flowin_workflow_transitions_total",
				Help: "Workflow transition attempts by operation and outcome.",
			}, []string{"op", "outcome"}),
		}
	})
	return workflow
}

func (m *WorkflowMetrics) IncTransition(op, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
}

func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		scheduler = &SchedulerMetrics{
			runs: promauto.NewCounter(prometheus.CounterOpts{
				Name: "flowin_scheduler_runs_total",
				Help: "Completed billing scheduler runs.",
			}),
			billingsIssued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "flowin_scheduler_billings_issued_total",
				Help: "Billings issued by the scheduler.",
			}),
			metersSkipped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "flowin_scheduler_meters_skipped_total",
				Help: "Meters skipped because the period was already billed.",
			}),
			metersFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "flowin_scheduler_meters_failed_total",
				Help: "Meters whose billing issuance failed.",
			}),
			runErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "flowin_scheduler_run_errors_total",
				Help: "Billing scheduler run errors.",
			}),
		}
	})
	return scheduler
}

func (m *SchedulerMetrics) IncRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

func (m *SchedulerMetrics) IncBillingIssued() {
	if m == nil {
		return
	}
	m.billingsIssued.Inc()
}

func (m *SchedulerMetrics) IncMeterSkipped() {
	if m == nil {
		return
	}
	m.metersSkipped.Inc()
}

func (m *SchedulerMetrics) IncMeterFailed() {
	if m == nil {
		return
	}
	m.metersFailed.Inc()
}

func (m *SchedulerMetrics) IncRunError() {
	if m == nil {
		return
	}
	m.runErrors.Inc()
}
