package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/siherrmann/grapher/constructor"
	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/rag"
	"github.com/siherrmann/grapher/schema"
	"github.com/siherrmann/grapher/userservice"
)

// Handler holds every dependency the HTTP surface calls into.
type Handler struct {
	users       *userservice.Service
	constructor *constructor.Constructor
	ops         *graphops.GraphOps
	rag         *rag.Interface
	registry    schema.Registry
	logger      *slog.Logger
	validate    *validator.Validate
	queryConfig model.QueryConfig
}

// NewHandler builds a Handler. queryConfig supplies the default top-k and
// max-hops for RAG endpoints that don't specify their own.
func NewHandler(users *userservice.Service, c *constructor.Constructor, ops *graphops.GraphOps, r *rag.Interface, registry schema.Registry, logger *slog.Logger, queryConfig model.QueryConfig) *Handler {
	return &Handler{
		users:       users,
		constructor: c,
		ops:         ops,
		rag:         r,
		registry:    registry,
		logger:      logger,
		validate:    validator.New(),
		queryConfig: queryConfig,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func userIDFromPath(r *http.Request) string { return chi.URLParam(r, "userID") }

func validUserIDOrFail(w http.ResponseWriter, userID string) bool {
	if !model.ValidUserID(userID) {
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: "invalid user id"})
		return false
	}
	return true
}

// CreateUser handles POST /users/{userID}.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	created, err := h.users.CreateUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, "create user", err)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, messageResponse{Message: "user " + userID + " created"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "user " + userID + " already exists"})
}

// DeleteUser handles DELETE /users/{userID}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		h.writeError(w, "delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "user deleted"})
}

type ingestRequest struct {
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Ingest handles POST /users/{userID}/ingest.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "content is required"})
		return
	}

	_, _, err := h.constructor.Ingest(r.Context(), model.UnstructuredData{
		Title: req.Title, Content: req.Content, Metadata: req.Metadata,
	}, userID)
	if err != nil {
		h.writeError(w, "ingest", err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "ingested"})
}

type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// RAGQuery handles POST /users/{userID}/rag/query.
func (h *Handler) RAGQuery(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validate.Struct(req) != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "query is required"})
		return
	}

	answer, err := h.rag.Query(r.Context(), req.Query, userID, h.queryConfig)
	if err != nil {
		h.writeError(w, "rag query", err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

type queryVectorResponse struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// RAGQueryVector handles POST /users/{userID}/rag/query-vector.
func (h *Handler) RAGQueryVector(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validate.Struct(req) != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "query is required"})
		return
	}

	answer, err := h.rag.QueryVectorOnly(r.Context(), req.Query, userID, h.queryConfig)
	if err != nil {
		h.writeError(w, "rag query vector", err)
		return
	}
	writeJSON(w, http.StatusOK, queryVectorResponse{Query: req.Query, Response: answer})
}

type askRequest struct {
	Query        string `json:"query" validate:"required"`
	OutputSchema string `json:"output_schema"`
}

type resultResponse struct {
	Result any `json:"result"`
}

// Ask handles POST /users/{userID}/ask. OutputSchema, when set, constrains
// the generator to that shape via GenerateStructured instead of free text.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validate.Struct(req) != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "query is required"})
		return
	}

	result, err := h.rag.Ask(r.Context(), req.Query, req.OutputSchema, userID, h.queryConfig)
	if err != nil {
		h.writeError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

type schemaRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	Attributes    []string `json:"attributes"`
	Relationships []string `json:"relationships"`
}

type schemaResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Attributes    []string  `json:"attributes"`
	Relationships []string  `json:"relationships"`
}

// StoreSchema handles POST /users/{userID}/schemas: teaches the user's
// registry a new attribute/relationship vocabulary for extraction to prefer.
func (h *Handler) StoreSchema(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	var req schemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "name is required"})
		return
	}

	stored, err := h.registry.StoreSchema(r.Context(), userID, model.GraphSchema{
		Name:          req.Name,
		Description:   req.Description,
		Attributes:    req.Attributes,
		Relationships: req.Relationships,
	})
	if err != nil {
		h.writeError(w, "store schema", err)
		return
	}
	writeJSON(w, http.StatusCreated, schemaResponse{
		ID:            stored.ID,
		Name:          stored.Name,
		Description:   stored.Description,
		Attributes:    stored.Attributes,
		Relationships: stored.Relationships,
	})
}

type customDataRequest struct {
	Nodes         []model.ExtractedNode         `json:"nodes"`
	Relationships []model.ExtractedRelationship `json:"relationships"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// CustomData handles POST /users/{userID}/custom-data: direct graph writes
// bypassing extraction, for callers that already have structured data.
func (h *Handler) CustomData(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromPath(r)
	if !validUserIDOrFail(w, userID) {
		return
	}

	var req customDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	_, _, err := h.ops.UpdateGraph(r.Context(), model.GraphUpdate{
		Nodes: req.Nodes, Relationships: req.Relationships,
	}, userID)
	if err != nil {
		h.writeError(w, "custom data", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

type versionResponse struct {
	Version string `json:"version"`
}

// Version handles GET /version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: Version})
}

// writeError maps a typed error to its documented HTTP status code.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err)
	}
	writeJSON(w, status, messageResponse{Message: message})
}

func statusFor(err error) (int, string) {
	switch {
	case helper.Is(err, helper.InvalidUserId):
		return http.StatusUnprocessableEntity, "invalid user id"
	case helper.Is(err, helper.UserAbsent):
		return http.StatusNotFound, "user not found"
	case helper.Is(err, helper.EmptyContent):
		return http.StatusBadRequest, "Content cannot be empty"
	case helper.Is(err, helper.IngestBusy):
		return http.StatusTooManyRequests, "ingestion already in progress for this user"
	case helper.Is(err, helper.Timeout):
		return http.StatusGatewayTimeout, "operation timed out"
	case helper.Is(err, helper.ExtractFailed):
		return http.StatusInternalServerError, "extraction failed"
	case helper.Is(err, helper.ConflictingSchema):
		return http.StatusInternalServerError, "vector index configuration conflict"
	default:
		var kindErr *helper.Error
		if errors.As(err, &kindErr) && kindErr.Kind != "" {
			return http.StatusInternalServerError, string(kindErr.Kind)
		}
		return http.StatusInternalServerError, "internal error"
	}
}
