package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carelineai/concierge/internal/dialogue"
	"github.com/carelineai/concierge/internal/intake"
	"github.com/carelineai/concierge/internal/messaging"
	"github.com/carelineai/concierge/internal/places"
	"github.com/carelineai/concierge/pkg/logging"
)

const maxBookingBodyBytes = 64 << 10

// clinicSearcher finds candidate clinics near a postal code.
type clinicSearcher interface {
	SearchClinics(ctx context.Context, postalCode, specialty string) ([]places.Clinic, error)
}

// BookingHandler accepts booking requests and exposes call status.
type BookingHandler struct {
	engine   *dialogue.Engine
	store    dialogue.SessionStore
	searcher clinicSearcher
	logger   *logging.Logger
}

type BookingHandlerConfig struct {
	Engine *dialogue.Engine
	Store  dialogue.SessionStore
	// Searcher is optional; without it, requests must carry a clinic phone.
	Searcher clinicSearcher
	Logger   *logging.Logger
}

func NewBookingHandler(cfg BookingHandlerConfig) *BookingHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &BookingHandler{
		engine:   cfg.Engine,
		store:    cfg.Store,
		searcher: cfg.Searcher,
		logger:   cfg.Logger,
	}
}

type createCallRequest struct {
	PatientName      string   `json:"patient_name"`
	Reason           string   `json:"reason"`
	PreferredWindows []string `json:"preferred_windows"`
	ClinicName       string   `json:"clinic_name"`
	ClinicPhone      string   `json:"clinic_phone"`
	CallbackPhone    string   `json:"callback_phone"`
	PostalCode       string   `json:"postal_code"`
}

type createCallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

type clinicCandidatesResponse struct {
	Specialty string          `json:"specialty"`
	Clinics   []places.Clinic `json:"clinics"`
}

// HandleCreateCall places an outbound booking call. When the request names no
// clinic phone, it instead returns nearby clinic candidates for the caller to
// choose from.
func (h *BookingHandler) HandleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookingBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.PatientName = strings.TrimSpace(req.PatientName)
	req.Reason = strings.TrimSpace(req.Reason)
	req.ClinicName = strings.TrimSpace(req.ClinicName)
	if req.PatientName == "" || req.Reason == "" {
		writeJSONError(w, http.StatusBadRequest, "patient_name and reason are required")
		return
	}

	if strings.TrimSpace(req.ClinicPhone) == "" {
		h.suggestClinics(w, r, req)
		return
	}

	clinicPhone := messaging.NormalizeE164(req.ClinicPhone)
	if clinicPhone == "" {
		writeJSONError(w, http.StatusBadRequest, "clinic_phone is not a valid phone number")
		return
	}
	callbackPhone := messaging.NormalizeE164(req.CallbackPhone)

	callID, err := h.engine.StartCall(r.Context(), dialogue.BookingRequest{
		PatientName:      req.PatientName,
		Reason:           req.Reason,
		PreferredWindows: req.PreferredWindows,
		ClinicName:       req.ClinicName,
		ClinicPhone:      clinicPhone,
		CallbackPhone:    callbackPhone,
	})
	if err != nil {
		h.logger.Error("call placement failed",
			"clinic", req.ClinicName,
			"error", err,
		)
		writeJSONError(w, http.StatusBadGateway, "could not place the call")
		return
	}

	writeJSON(w, http.StatusAccepted, createCallResponse{CallID: callID, Status: dialogue.StatusInProgress})
}

// suggestClinics infers a specialty from the visit reason and returns nearby
// candidates instead of placing a call.
func (h *BookingHandler) suggestClinics(w http.ResponseWriter, r *http.Request, req createCallRequest) {
	if h.searcher == nil {
		writeJSONError(w, http.StatusBadRequest, "clinic_phone is required")
		return
	}
	if strings.TrimSpace(req.PostalCode) == "" {
		writeJSONError(w, http.StatusBadRequest, "postal_code is required to search for clinics")
		return
	}
	specialty := intake.InferSpecialty(req.Reason)
	clinics, err := h.searcher.SearchClinics(r.Context(), req.PostalCode, string(specialty))
	if err != nil {
		h.logger.Error("clinic search failed", "postal_code", req.PostalCode, "error", err)
		writeJSONError(w, http.StatusBadGateway, "clinic search failed")
		return
	}
	writeJSON(w, http.StatusOK, clinicCandidatesResponse{Specialty: string(specialty), Clinics: clinics})
}

// HandleGetCall returns the live or recently stored session for a call.
func (h *BookingHandler) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if callID == "" {
		writeJSONError(w, http.StatusBadRequest, "call id required")
		return
	}
	session, err := h.store.Get(r.Context(), callID)
	if err != nil {
		h.logger.Error("session lookup failed", "call_id", callID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	if session == nil {
		writeJSONError(w, http.StatusNotFound, "call not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
