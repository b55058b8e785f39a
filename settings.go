package swrgate

import (
	"net/http"

	"github.com/Keksclan/swrgate/docs"
	"github.com/Keksclan/swrgate/health"
	"github.com/Keksclan/swrgate/internal/core"
	"github.com/Keksclan/swrgate/metrics"
	"github.com/rs/zerolog"
)

// options holds the internal configuration assembled via functional options.
type options struct {
	logger      zerolog.Logger
	middlewares core.MiddlewareBuilder
	health      *health.Status
	metrics     *metrics.Metrics
	metricsPath string
	api         http.Handler
	docs        *docs.Handler
	err         error
}
