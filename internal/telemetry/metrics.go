package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в глобальном registry при импорте пакета
// и отдаются через promhttp.Handler() на /metrics.
var (
	// NodeTransitions — переходы узлов instance по целевому статусу.
	NodeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_node_transitions_total",
		Help: "Instance node status transitions by target status",
	}, []string{"status"})

	// InstancesCreated — созданные instances.
	InstancesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actionflow_instances_created_total",
		Help: "Action instances created",
	})

	// InstancesFinished — instances, достигшие терминального статуса.
	InstancesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_instances_finished_total",
		Help: "Action instances that reached a terminal status",
	}, []string{"status"})

	// DispatchTotal — отправки заданий по результату (ok, error).
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_dispatch_total",
		Help: "Job submissions to the launcher by result",
	}, []string{"result"})

	// DispatchDuration — длительность отправки задания.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "actionflow_dispatch_duration_seconds",
		Help:    "Latency of job submissions to the launcher",
		Buckets: prometheus.DefBuckets,
	})

	// HeartbeatDirectives — ответы на HEARTBEAT (continue, stop).
	HeartbeatDirectives = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_heartbeat_directives_total",
		Help: "Heartbeat replies by directive",
	}, []string{"action"})

	// StaleNodesSwept — узлы, снятые по таймауту heartbeat.
	StaleNodesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actionflow_stale_nodes_swept_total",
		Help: "Running nodes failed by the heartbeat timeout sweeper",
	})

	// HTTPRequests — HTTP запросы по маршруту и коду ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_http_requests_total",
		Help: "HTTP requests handled by route pattern and status code",
	}, []string{"route", "code"})

	// HTTPDuration — время обработки HTTP запроса по маршруту.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actionflow_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"route"})

	// JobsLaunched — процессы, запущенные launcher'ом (ok, error).
	JobsLaunched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_launcher_jobs_total",
		Help: "Worker processes started by the launcher by result",
	}, []string{"result"})

	// MQConnected — 1, пока соединение с RabbitMQ открыто.
	MQConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "actionflow_mq_connected",
		Help: "Whether the RabbitMQ connection is currently open",
	})

	// MQReconnects — попытки переподключения к RabbitMQ (ok, error).
	MQReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_mq_reconnects_total",
		Help: "RabbitMQ reconnect attempts by result",
	}, []string{"result"})

	// MQMessages — сообщения по exchange или очереди и исходу
	// (published, publish_error, ack, requeue, dead_letter).
	MQMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actionflow_mq_messages_total",
		Help: "RabbitMQ messages by exchange or queue and outcome",
	}, []string{"target", "outcome"})
)
