package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lifecycle 聚合了订单生命周期引擎的核心指标。
type Lifecycle struct {
	TransitionsAccepted *prometheus.CounterVec
	VersionConflicts    prometheus.Counter
	SettlementRejected  prometheus.Counter
	AssignLockContended prometheus.Counter
}

func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	factory := promauto.With(reg)
	return &Lifecycle{
		TransitionsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_order_transitions_total",
			Help: "Accepted order status transitions, by from/to status.",
		}, []string{"from", "to"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldops_order_version_conflicts_total",
			Help: "Mutations rejected because the expected version was stale.",
		}),
		SettlementRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldops_order_settlement_rejections_total",
			Help: "Mutations rejected because the settlement week was locked.",
		}),
		AssignLockContended: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldops_order_assign_lock_contention_total",
			Help: "Assign operations that lost the distributed lock race.",
		}),
	}
}
