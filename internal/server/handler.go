package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"medconsult/internal/consultation"
	"medconsult/internal/diagnosis"
	"medconsult/internal/drugs"
	"medconsult/internal/health"
	"medconsult/internal/progress"
	"medconsult/internal/report"
	"medconsult/internal/resilience"
)

const maxUploadBytes = 10 << 20

// Handler holds the HTTP layer dependencies.
type Handler struct {
	consultations *consultation.Service
	diagnosis     *diagnosis.Service
	drugs         *drugs.Service
	reports       *report.Service
	resilience    *resilience.Registry
	checker       *health.Checker
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewHandler(
	consultations *consultation.Service,
	diag *diagnosis.Service,
	drugSvc *drugs.Service,
	reports *report.Service,
	registry *resilience.Registry,
	checker *health.Checker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		consultations: consultations,
		diagnosis:     diag,
		drugs:         drugSvc,
		reports:       reports,
		resilience:    registry,
		checker:       checker,
		validate:      validator.New(),
		logger:        logger,
	}
}

type consultationRequest struct {
	Symptoms       string `validate:"required,min=3,max=4000"`
	PatientAge     int    `validate:"gte=0,lte=130"`
	PatientGender  string `validate:"omitempty,oneof=female male other"`
	MedicalHistory string `validate:"max=2000"`
}

// parseConsultationForm reads the consultation form fields shared by the
// text, enhanced, and diagnosis endpoints.
func (h *Handler) parseConsultationForm(r *http.Request) (*consultationRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.Wrap(err, "invalid form data")
	}
	req := &consultationRequest{
		Symptoms:       strings.TrimSpace(r.FormValue("symptoms")),
		PatientGender:  strings.TrimSpace(r.FormValue("patient_gender")),
		MedicalHistory: strings.TrimSpace(r.FormValue("medical_history")),
	}
	if ageStr := r.FormValue("patient_age"); ageStr != "" {
		age, err := strconv.Atoi(ageStr)
		if err != nil {
			return nil, errors.New("patient_age must be a number")
		}
		req.PatientAge = age
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (req *consultationRequest) patient() *consultation.Patient {
	if req.PatientAge == 0 && req.PatientGender == "" && req.MedicalHistory == "" {
		return nil
	}
	return consultation.NewPatient(req.PatientAge, req.PatientGender, req.MedicalHistory)
}

// analysisPayload shapes a completed assessment for the consultation
// endpoints.
func analysisPayload(resp *consultation.MedicalResponse) map[string]interface{} {
	return map[string]interface{}{
		"urgency":                   resp.Urgency,
		"confidence":                resp.Confidence,
		"is_emergency":              resp.IsEmergency(),
		"recommendations":           resp.Recommendations,
		"red_flags":                 resp.RedFlags,
		"patient_friendly_response": resp.PatientFriendlyText(),
		"model_used":                resp.ModelUsed,
	}
}

// TextConsultation handles POST /api/consultation/text.
func (h *Handler) TextConsultation(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseConsultationForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.consultations.ProcessText(r.Context(), req.Symptoms, req.patient(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"consultation_id": c.ID,
		"analysis":        analysisPayload(c.Response),
	})
}

// VoiceConsultation handles POST /api/consultation/voice: multipart audio
// upload, transcription, analysis, and optional spoken response.
func (h *Handler) VoiceConsultation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("audio_file is required"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(err, "reading audio upload"))
		return
	}

	// Each demographic field stands on its own; a missing age must not
	// drop the gender or history the caller supplied.
	age := 0
	if ageStr := r.FormValue("patient_age"); ageStr != "" {
		if v, convErr := strconv.Atoi(ageStr); convErr == nil {
			age = v
		}
	}
	gender := strings.TrimSpace(r.FormValue("patient_gender"))
	history := strings.TrimSpace(r.FormValue("medical_history"))
	var patient *consultation.Patient
	if age != 0 || gender != "" || history != "" {
		patient = consultation.NewPatient(age, gender, history)
	}

	c, err := h.consultations.ProcessVoice(r.Context(), audio, header.Filename, patient, "")
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	result := map[string]interface{}{
		"success":            true,
		"consultation_id":    c.ID,
		"transcription":      c.Transcription,
		"analysis":           analysisPayload(c.Response),
		"has_audio_response": false,
		"processing_time_ms": c.Response.ProcessingTimeMs,
	}

	// Spoken response is best effort; the text result stands alone.
	if r.FormValue("voice_response") != "false" {
		if speech, ttsErr := h.consultations.SynthesizeSpeech(r.Context(), c.Response.ResponseText); ttsErr == nil {
			result["audio_base64"] = base64.StdEncoding.EncodeToString(speech)
			result["has_audio_response"] = true
		} else {
			h.logger.Warn("voice response synthesis failed", zap.Error(ttsErr))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// EnhancedConsultation handles POST /api/consultation/enhanced: full text
// analysis plus medication recommendations and interaction checks.
func (h *Handler) EnhancedConsultation(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseConsultationForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patient := req.patient()

	// The enhanced flow owns its progress session so the medication
	// lookup can be reported after the assessment stages.
	sessionID := uuid.NewString()
	c, err := h.consultations.ProcessText(r.Context(), req.Symptoms, patient, sessionID)
	if err != nil {
		h.consultations.FinishProgress(sessionID)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	symptoms, err := consultation.ParseSymptoms(req.Symptoms)
	if err != nil {
		h.consultations.FinishProgress(sessionID)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.consultations.AdvanceStage(sessionID, progress.StageFindingMedications)
	recommendations := h.drugs.Recommend(c.Response.ResponseText, symptoms, patient, 3)

	var names []string
	for _, rec := range recommendations {
		names = append(names, rec.GenericName)
	}
	var currentMeds []string
	if patient != nil {
		currentMeds = patient.CurrentMedications
	}
	interactions := h.drugs.CheckInteractions(names, currentMeds)
	h.consultations.FinishProgress(sessionID)

	analysis := analysisPayload(c.Response)
	analysis["follow_up_questions"] = c.Response.FollowUpQuestions
	analysis["drug_recommendations"] = recommendations
	analysis["drug_interactions"] = interactions

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"consultation_id": c.ID,
		"analysis":        analysis,
	})
}

// Synthesize handles POST /api/tts.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	audio, err := h.consultations.SynthesizeSpeech(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Write(audio)
}

// StartDiagnosis handles POST /api/diagnosis/interactive/start.
func (h *Handler) StartDiagnosis(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseConsultationForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	symptoms, err := consultation.ParseSymptoms(req.Symptoms)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.diagnosis.Start(r.Context(), symptoms, req.patient())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, diagnosisResult{Success: true, Round: round})
}

// diagnosisResult wraps a round with the success flag clients key on.
type diagnosisResult struct {
	Success bool `json:"success"`
	*diagnosis.Round
}

// AnswerDiagnosis handles POST /api/diagnosis/interactive/answer.
func (h *Handler) AnswerDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID  string `json:"session_id" validate:"required,uuid4"`
		QuestionID string `json:"question_id" validate:"required"`
		Answer     string `json:"answer" validate:"required,max=2000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.diagnosis.Answer(r.Context(), req.SessionID, req.QuestionID, req.Answer)
	if err != nil {
		if errors.Is(err, diagnosis.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, diagnosisResult{Success: true, Round: round})
}

// DiagnosisStatus handles GET /api/diagnosis/interactive/{sessionID}/status.
func (h *Handler) DiagnosisStatus(w http.ResponseWriter, r *http.Request) {
	round, err := h.diagnosis.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// CancelDiagnosis handles DELETE /api/diagnosis/interactive/{sessionID}.
func (h *Handler) CancelDiagnosis(w http.ResponseWriter, r *http.Request) {
	if !h.diagnosis.Cancel(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, diagnosis.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// DrugInteractions handles POST /api/drugs/interactions.
func (h *Handler) DrugInteractions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Drugs              []string `json:"drugs" validate:"required,min=1"`
		CurrentMedications []string `json:"current_medications"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.drugs.CheckInteractions(req.Drugs, req.CurrentMedications))
}

// RecentConsultations handles GET /api/consultation/recent.
func (h *Handler) RecentConsultations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	list, err := h.consultations.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"consultations": list,
	})
}

// ConsultationReport handles GET /api/consultation/{id}/report, returning
// the PDF summary.
func (h *Handler) ConsultationReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid consultation id"))
		return
	}

	c, err := h.consultations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, consultation.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	pdfBytes, err := h.reports.GeneratePDF(c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.pdf", id))
	w.Write(pdfBytes)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.checker.Snapshot(r.Context())
	status := http.StatusOK
	if snap.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}

// ResilienceStatus handles GET /api/resilience/status.
func (h *Handler) ResilienceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"circuit_breakers": h.resilience.Stats(),
		"retry_policies":   h.resilience.RetryPolicies(),
	})
}

// ResilienceReset handles POST /api/resilience/reset.
func (h *Handler) ResilienceReset(w http.ResponseWriter, r *http.Request) {
	h.resilience.ResetAll()
	h.logger.Info("circuit breakers reset via admin endpoint")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"circuit_breakers": h.resilience.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
