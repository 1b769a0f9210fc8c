package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/GoDocRAG/internal/handlers"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
	public     bool
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var HealthHandler = WrapPublic(handlers.HealthHandler)

var QueryHandler = Wrap(handlers.QueryHandler)
var HighlightHandler = Wrap(handlers.HighlightHandler)
var InvalidateHandler = Wrap(handlers.InvalidateHandler)
var ReindexHandler = Wrap(handlers.PostReindexHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)

// Wrap runs trace injection, the API key check and the rate limiter before next.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, false)
}

// WrapPublic skips the API key check.
func WrapPublic(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, true)
}

func wrap(next http.HandlerFunc, public bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec, public: public})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(routePattern(r), strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	if !re.public {
		re = authenticate(re)
		if re.badRequest.isBadRequest {
			return re //stop if auth fails
		}
	}
	return rateLimiter(re)
}
