package middleware

import (
	"net/http"
	"strconv"

	"github.com/anvik/docstream/internal/handlers"
	"github.com/anvik/docstream/internal/metrics"
	"github.com/anvik/docstream/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var UploadHandler = Wrap(handlers.UploadHandler)
var SearchHandler = Wrap(handlers.SearchHandler)
var ListDocumentsHandler = Wrap(handlers.ListDocumentsHandler)
var StatusHandler = Wrap(handlers.StatusHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)

	re = injectTrace(re)
	re = rateLimiter(re)
	return re
}
