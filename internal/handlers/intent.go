package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	logpkg "github.com/kotoba-voice/kotoba/internal/logger"
	"github.com/kotoba-voice/kotoba/internal/services/assistant"
	"github.com/kotoba-voice/kotoba/internal/validation"
	"go.uber.org/zap"
)

// Fixed speech for the non-question intents
const (
	SpeechLaunch   = "Hi there! Ask me anything you like."
	SpeechHelp     = "Just ask me a question and I'll do my best to answer it."
	SpeechGoodbye  = "Bye bye, talk to you later!"
	SpeechFallback = "Say that again for me, nice and slowly."
)

// Intent names dispatched by the intent endpoint
const (
	IntentAsk      = "AskIntent"
	IntentHelp     = "HelpIntent"
	IntentStop     = "StopIntent"
	IntentCancel   = "CancelIntent"
	IntentFallback = "FallbackIntent"

	// SlotQuestion carries the free-text question for AskIntent
	SlotQuestion = "question"
)

// IntentHandler handles voice-platform intent requests
type IntentHandler struct {
	service *assistant.Service
	logger  *zap.Logger
}

// NewIntentHandler creates a new intent handler
func NewIntentHandler(service *assistant.Service, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers intent routes on the given router
func (h *IntentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/intent", h.HandleIntent).Methods("POST")
	r.HandleFunc("/ask", h.HandleAsk).Methods("POST")
}

// Intent is the matched intent with its filled slots
type Intent struct {
	Name  string            `json:"name"`
	Slots map[string]string `json:"slots,omitempty"`
}

// IntentRequest is the envelope the voice platform posts for every request
type IntentRequest struct {
	Type      string  `json:"type" validate:"required,request_type"`
	UserID    string  `json:"user_id" validate:"required,max=256"`
	SessionID string  `json:"session_id,omitempty"`
	Intent    *Intent `json:"intent,omitempty"`
}

// HandleIntent dispatches one intent envelope to the matching handler and
// responds with the speech to render.
func (h *IntentHandler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}

	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	reply := h.dispatch(r, &req)
	respondJSON(w, http.StatusOK, reply)
}

func (h *IntentHandler) dispatch(r *http.Request, req *IntentRequest) *assistant.Reply {
	switch req.Type {
	case validation.RequestTypeLaunch:
		return &assistant.Reply{Speech: SpeechLaunch, Reprompt: SpeechLaunch}

	case validation.RequestTypeSessionEnded:
		h.service.EndSession(req.UserID)
		return &assistant.Reply{EndSession: true}

	case validation.RequestTypeIntent:
		return h.dispatchIntent(r, req)

	default:
		// Unreachable; the envelope type was validated
		return &assistant.Reply{Speech: SpeechFallback, Reprompt: SpeechFallback}
	}
}

func (h *IntentHandler) dispatchIntent(r *http.Request, req *IntentRequest) *assistant.Reply {
	if req.Intent == nil {
		return &assistant.Reply{Speech: SpeechFallback, Reprompt: SpeechFallback}
	}

	switch req.Intent.Name {
	case IntentAsk:
		question := req.Intent.Slots[SlotQuestion]
		h.logger.Debug("ask_intent",
			zap.String("user_id", logpkg.SanitizeUserID(req.UserID)),
			zap.String("question", logpkg.SanitizeQuestion(question)),
		)
		return h.service.Ask(r.Context(), req.UserID, question)

	case IntentHelp:
		return &assistant.Reply{Speech: SpeechHelp, Reprompt: SpeechHelp}

	case IntentStop, IntentCancel:
		h.service.EndSession(req.UserID)
		return &assistant.Reply{Speech: SpeechGoodbye, EndSession: true}

	case IntentFallback:
		return &assistant.Reply{Speech: SpeechFallback, Reprompt: SpeechFallback}

	default:
		h.logger.Info("unhandled_intent",
			zap.String("intent", logpkg.SanitizeString(req.Intent.Name, 128)),
		)
		return &assistant.Reply{Speech: SpeechFallback, Reprompt: SpeechFallback}
	}
}

// AskRequest is the direct-ask shortcut body, bypassing the intent envelope
type AskRequest struct {
	UserID   string `json:"user_id" validate:"required,max=256"`
	Question string `json:"question" validate:"required,max=4096"`
}

// HandleAsk answers one question without the intent envelope
func (h *IntentHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}

	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	reply := h.service.Ask(r.Context(), req.UserID, req.Question)
	respondJSON(w, http.StatusOK, reply)
}
