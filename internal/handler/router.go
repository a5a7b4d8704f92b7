package handler

import (
	"net/http"

	"github.com/segyhp/loan-tracker/pkg/response"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route behind the request id, logging and CORS
// middleware.
func NewRouter(loans *LoanHandler, health *HealthHandler, log *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware, LoggingMiddleware(log), response.CORSMiddleware)
	// Unmatched requests skip router.Use, so these carry CORS themselves. No
	// route accepts OPTIONS; preflights land here and CORS answers them.
	router.MethodNotAllowedHandler = response.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w)
	}))
	router.NotFoundHandler = response.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	}))

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/loans", loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans", loans.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", loans.RejectMassDelete).Methods(http.MethodDelete)
	api.HandleFunc("/loans/summary", loans.ListSummaries).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id:[0-9]+}", loans.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id:[0-9]+}", loans.UpdateLoan).Methods(http.MethodPut)
	api.HandleFunc("/loans/{id:[0-9]+}", loans.DeleteLoan).Methods(http.MethodDelete)

	api.HandleFunc("/payments", loans.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/payments", loans.CreatePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments", loans.RejectMassDelete).Methods(http.MethodDelete)
	api.HandleFunc("/payments/{id:[0-9]+}", loans.DeletePayment).Methods(http.MethodDelete)

	api.HandleFunc("/borrowers/{borrowerId}/summary", loans.GetBorrowerSummary).Methods(http.MethodGet)
	api.HandleFunc("/stats", loans.Stats).Methods(http.MethodGet)

	return router
}
