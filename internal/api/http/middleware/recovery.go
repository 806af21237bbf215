package middleware

import (
	"fmt"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
)

// Recovery turns handler panics into 500 envelopes.
type Recovery struct {
	logger *logger.Logger
}

func NewRecovery(logger *logger.Logger) *Recovery {
	return &Recovery{logger: logger}
}

func (m *Recovery) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				m.logger.Error("panic recovered in HTTP handler",
					"error", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", chimiddleware.GetReqID(r.Context()))
				response.Error(w, r, apierror.NewErrInternal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
