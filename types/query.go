package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

type Validater interface {
	Validate() map[string]string
}

// SessionParams is the upload form that opens a session.
type SessionParams struct {
	Name           string `form:"name" json:"name" validate:"required,notblank,max=100"`
	Company        string `form:"company" json:"company" validate:"required,notblank,max=100"`
	BusinessSector string `form:"business_sector" json:"business_sector" validate:"required,notblank,max=100"`
}

type ChatParams struct {
	Message string `json:"message" validate:"required,notblank,max=4000"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *SessionParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	errors := make(map[string]string, len(errs))
	for _, e := range errs {
		errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return errors
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
	Pages     int    `json:"pages"`
	Ingested  bool   `json:"ingested"`
	Error     string `json:"error,omitempty"`
}

type SessionInfo struct {
	Session
	Pages    int    `json:"pages"`
	Ingested bool   `json:"ingested"`
	Error    string `json:"error,omitempty"`
}

type ChatResponse struct {
	Response   string    `json:"response"`
	Provenance string    `json:"provenance"`
	Timestamp  time.Time `json:"timestamp"`
}

// Websocket chat events.
const (
	EventUserMessage = "user_message"
	EventBotResponse = "bot_response"
	EventError       = "error"
)

type SocketMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type SocketReply struct {
	Event      string `json:"event"`
	Response   string `json:"response,omitempty"`
	Provenance string `json:"provenance,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ResolverSettings are the non-secret answer settings exposed by GET /api/v1/config.
type ResolverSettings struct {
	Provider             string   `json:"llm_provider"`
	Model                string   `json:"llm_model"`
	ContextWindow        int      `json:"context_window"`
	MinAnswerLength      int      `json:"min_answer_length"`
	LowConfidenceMarkers []string `json:"low_confidence_markers"`
	GenerationTimeout    string   `json:"generation_timeout"`
	Catalog              bool     `json:"catalog"`
}
