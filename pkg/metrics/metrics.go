package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PositionOperations counts deposit/redeem operations by op and result kind
var PositionOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stablecoin_position_operations_total",
		Help: "Total number of position operations by operation and result",
	},
	[]string{"op", "result"},
)

// PositionLatency records end-to-end latency of position operations
var PositionLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "stablecoin_position_operation_latency_seconds",
		Help:    "Latency in seconds of deposit and redeem operations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op"},
)

// HealthFactor records committed health factors; debt-free positions land in +Inf
var HealthFactor = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "stablecoin_health_factor",
		Help:    "Health factor of positions after a committed mutation",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 100},
	},
)

// Oracle metrics
var (
	OracleFetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stablecoin_oracle_fetch_latency_seconds",
			Help:    "Latency in seconds of price feed requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	OracleRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stablecoin_oracle_rejections_total",
			Help: "Number of price quotes rejected by validation",
		},
		[]string{"reason"},
	)
)

// Compensations counts collaborator calls reverted after a later step failed
var Compensations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stablecoin_compensations_total",
		Help: "Number of compensating collaborator calls by collaborator and result",
	},
	[]string{"collaborator", "result"},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stablecoin_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stablecoin_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(PositionOperations, PositionLatency, HealthFactor)
	prometheus.MustRegister(OracleFetchLatency, OracleRejections, Compensations)
	prometheus.MustRegister(DBOpenConns, DBInUseConns)
}
