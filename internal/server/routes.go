package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"medconsult/internal/web"
	"medconsult/internal/ws"
)

// RegisterRoutes wires the full API surface onto the router.
func RegisterRoutes(r chi.Router, h *Handler, hub *ws.Hub, metricsHandler http.Handler) {
	r.Get("/", web.Index)
	r.Get("/health", h.Health)
	r.Handle("/metrics", metricsHandler)
	r.Get("/ws/health", hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/consultation/text", h.TextConsultation)
		r.Post("/consultation/voice", h.VoiceConsultation)
		r.Post("/consultation/enhanced", h.EnhancedConsultation)
		r.Get("/consultation/recent", h.RecentConsultations)
		r.Get("/consultation/{id}/report", h.ConsultationReport)

		r.Post("/diagnosis/interactive/start", h.StartDiagnosis)
		r.Post("/diagnosis/interactive/answer", h.AnswerDiagnosis)
		r.Get("/diagnosis/interactive/{sessionID}/status", h.DiagnosisStatus)
		r.Delete("/diagnosis/interactive/{sessionID}", h.CancelDiagnosis)

		r.Post("/drugs/interactions", h.DrugInteractions)
		r.Post("/tts", h.Synthesize)

		r.Get("/resilience/status", h.ResilienceStatus)
		r.Post("/resilience/reset", h.ResilienceReset)
	})
}
