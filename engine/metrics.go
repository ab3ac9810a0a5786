package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mutationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forumd_mutations_total",
	Help: "The total number of mutations submitted, by kind and outcome",
}, []string{"kind", "status"})

var votesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "forumd_votes_in_flight",
	Help: "The number of optimistic votes awaiting remote confirmation",
})

var voteRollbacksCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "forumd_vote_rollbacks_total",
	Help: "The total number of optimistic votes reverted after a remote failure",
})
