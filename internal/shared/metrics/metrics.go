package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "documind"

// Registry holds every DocuMind collector. It is separate from the default
// registerer so tests can read values without global side effects.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	agentRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Agent executions by agent and outcome",
	}, []string{"agent", "status"})

	agentDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Agent execution duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"agent"})

	activeAgents = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_agents",
		Help:      "Agents currently executing",
	}, []string{"agent"})

	llmCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Model calls by provider, model and outcome",
	}, []string{"provider", "model", "status"})

	llmLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_latency_seconds",
		Help:      "Model call latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"provider", "model"})

	llmTokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_total",
		Help:      "Tokens consumed by provider and model",
	}, []string{"provider", "model"})

	tasks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_total",
		Help:      "Analysis task transitions by resulting status",
	}, []string{"status"})

	taskDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Wall time from task start to terminal status",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	workerMessages = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_messages_total",
		Help:      "Queue messages handled by the worker by outcome",
	}, []string{"outcome"})

	httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// AgentStarted marks an agent as running.
func AgentStarted(agent string) {
	activeAgents.WithLabelValues(agent).Inc()
}

// AgentFinished records the outcome and duration of an agent execution.
// status is "success" or "error".
func AgentFinished(agent, status string, d time.Duration) {
	activeAgents.WithLabelValues(agent).Dec()
	agentRequests.WithLabelValues(agent, status).Inc()
	agentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// ObserveLLMCall records one model call.
func ObserveLLMCall(provider, model, status string, d time.Duration, tokens int) {
	llmCalls.WithLabelValues(provider, model, status).Inc()
	llmLatency.WithLabelValues(provider, model).Observe(d.Seconds())
	if tokens > 0 {
		llmTokens.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// IncTaskStatus counts a task entering status.
func IncTaskStatus(status string) {
	tasks.WithLabelValues(status).Inc()
}

// ObserveTaskDuration records the processing time of a finished task.
func ObserveTaskDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	taskDuration.Observe(d.Seconds())
}

// IncWorkerMessage counts a queue message outcome such as received, completed,
// failed or deleted_unrecoverable.
func IncWorkerMessage(outcome string) {
	workerMessages.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest counts a served request.
func ObserveHTTPRequest(method, route, code string) {
	httpRequests.WithLabelValues(method, route, code).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))
}
