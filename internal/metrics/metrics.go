package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// Handler returns an http.Handler for Prometheus scraping
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Observer exports image lifecycle metrics to Prometheus.
type Observer struct {
	duration  *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
}

func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "image_service"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of image operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Image operations by outcome.",
		}, []string{"operation", "outcome"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Compensating deletions after a failed create.",
		}, []string{"operation"}),
	}

	o.duration = register(reg, o.duration)
	o.outcomes = register(reg, o.outcomes)
	o.rollbacks = register(reg, o.rollbacks)
	if o.duration == nil || o.outcomes == nil || o.rollbacks == nil {
		return nil, fmt.Errorf("register image metrics: conflicting collector in %q", namespace)
	}
	return o, nil
}

// register returns the collector already registered under the same name, if
// any, or nil on any other registration error.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		var zero C
		return zero
	}
	return c
}

func (o *Observer) ObserveOperation(op string, err error, d time.Duration) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(op).Observe(d.Seconds())
	o.outcomes.WithLabelValues(op, Outcome(err)).Inc()
}

func (o *Observer) ObserveRollback(op string) {
	if o == nil {
		return
	}
	o.rollbacks.WithLabelValues(op).Inc()
}

// Outcome buckets an error into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidSize),
		errors.Is(err, models.ErrInvalidOwnerKind):
		return "invalid"
	case errors.Is(err, models.ErrUnsupportedMedia):
		return "unsupported_media"
	case errors.Is(err, models.ErrOwnerNotFound), errors.Is(err, models.ErrAssetNotFound),
		errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrEncode):
		return "encode_error"
	case errors.Is(err, models.ErrIO):
		return "io_error"
	}
	return "error"
}
