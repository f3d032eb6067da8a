package backend

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
)

// Server is the reference backend RPC service. It owns reference ids and
// permissions and bootstraps documents into the replication layer; it never
// touches document content after creation.
type Server struct {
	store  *RefStore
	repo   *crdt.MemoryRepo
	issuer *TokenIssuer
	logger *zap.Logger
}

// NewServer assembles the RPC service.
func NewServer(store *RefStore, repo *crdt.MemoryRepo, issuer *TokenIssuer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, repo: repo, issuer: issuer, logger: logger}
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleValidateSession)
		r.Post("/refs", s.handleCreateRef)
		r.Delete("/refs/{refID}", s.handleDeleteRef)
		r.Get("/refs/{refID}/doc-id", s.handleDocIDFor)
		r.Get("/refs/{refID}/permissions", s.handleGetPermissions)
	})

	return r
}

// locatorResponse is the wire form of a document locator.
type locatorResponse struct {
	DocID    string `json:"docId"`
	MaxLevel string `json:"maxLevel"`
	Deleted  bool   `json:"deleted"`
}

type permissionsResponse struct {
	Level string `json:"level"`
}

type createRefRequest struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	TheoryID   string `json:"theoryId"`
	Public     string `json:"public,omitempty"`
	DiagramIn  string `json:"diagramIn,omitempty"`
	AnalysisOf string `json:"analysisOf,omitempty"`
}

type createRefResponse struct {
	RefID string `json:"refId"`
	DocID string `json:"docId"`
}

type errorResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.issuer.principalFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p.Anonymous() {
		s.writeError(w, r, apperrors.NewSessionInvalid(nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocIDFor(w http.ResponseWriter, r *http.Request) {
	p, err := s.issuer.principalFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refID := domain.RefID(chi.URLParam(r, "refID"))
	if err := refID.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.store.Locate(refID, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, locatorResponse{
		DocID:    loc.DocID,
		MaxLevel: loc.MaxLevel.String(),
		Deleted:  loc.Deleted,
	})
}

func (s *Server) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	p, err := s.issuer.principalFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refID := domain.RefID(chi.URLParam(r, "refID"))
	if err := refID.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	level, err := s.store.Permissions(refID, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, permissionsResponse{Level: level.String()})
}

func (s *Server) handleCreateRef(w http.ResponseWriter, r *http.Request) {
	p, err := s.issuer.principalFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p.Anonymous() {
		s.writeError(w, r, apperrors.NewSessionInvalid(nil))
		return
	}

	var req createRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewValidation("malformed request body"))
		return
	}

	var doc *domain.Document
	switch domain.DocumentType(req.Type) {
	case domain.DocumentModel:
		doc = domain.NewModelDocument(req.Name, req.TheoryID)
	case domain.DocumentDiagram:
		doc = domain.NewDiagramDocument(req.Name, req.TheoryID, domain.RefID(req.DiagramIn))
	case domain.DocumentAnalysis:
		doc = domain.NewAnalysisDocument(req.Name, req.TheoryID, domain.RefID(req.AnalysisOf))
	default:
		s.writeError(w, r, apperrors.NewValidation("unknown document type"))
		return
	}
	if err := doc.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	public := domain.PermissionNone
	if req.Public != "" {
		public, err = domain.ParsePermissionLevel(req.Public)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	docID := s.repo.Create(doc)
	refID := s.store.Mint(docID, p.UserID, public)
	s.logger.Info("minted reference",
		zap.String("ref_id", refID.String()),
		zap.String("doc_id", string(docID)),
		zap.String("owner", p.UserID))
	s.writeJSON(w, http.StatusCreated, createRefResponse{RefID: refID.String(), DocID: string(docID)})
}

func (s *Server) handleDeleteRef(w http.ResponseWriter, r *http.Request) {
	p, err := s.issuer.principalFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refID := domain.RefID(chi.URLParam(r, "refID"))
	if err := s.store.SoftDelete(refID, p); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	status := http.StatusInternalServerError
	resp := errorResponse{Type: string(apperrors.ErrorTypeInternal), Code: "INTERNAL", Message: "internal error"}

	if ok := apperrors.AsError(err, &appErr); ok {
		status = statusFor(appErr.Type)
		resp = errorResponse{Type: string(appErr.Type), Code: appErr.Code, Message: appErr.Message}
	}
	if status >= 500 {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, status, resp)
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypePermission:
		return http.StatusForbidden
	case apperrors.ErrorTypeSessionInvalid:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
