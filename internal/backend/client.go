package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
)

// Client is the HTTP client for the backend RPC service. Calls run through a
// circuit breaker so a dead backend fails fast instead of piling up
// in-flight requests; client-classified failures (not-found, permission,
// session) do not trip the breaker.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	token   string
	logger  *zap.Logger
}

// NewClient creates a client against baseURL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "backend-rpc",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			var sc *shortCircuit
			return err == nil || errors.As(err, &sc)
		},
	})
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

// SetToken installs the session token sent with subsequent calls.
func (c *Client) SetToken(token string) { c.token = token }

// DocIDFor resolves a reference into a document locator.
func (c *Client) DocIDFor(ctx context.Context, refID domain.RefID) (domain.DocumentLocator, error) {
	var resp locatorResponse
	if err := c.get(ctx, fmt.Sprintf("/api/v1/refs/%s/doc-id", refID), &resp); err != nil {
		return domain.DocumentLocator{}, err
	}
	level, err := domain.ParsePermissionLevel(resp.MaxLevel)
	if err != nil {
		return domain.DocumentLocator{}, apperrors.NewInternal("backend returned unknown permission level", err)
	}
	return domain.DocumentLocator{DocID: resp.DocID, MaxLevel: level, Deleted: resp.Deleted}, nil
}

// GetPermissions returns the caller's effective permission level on a
// reference.
func (c *Client) GetPermissions(ctx context.Context, refID domain.RefID) (domain.PermissionLevel, error) {
	var resp permissionsResponse
	if err := c.get(ctx, fmt.Sprintf("/api/v1/refs/%s/permissions", refID), &resp); err != nil {
		return domain.PermissionNone, err
	}
	return domain.ParsePermissionLevel(resp.Level)
}

// ValidateSession checks that the installed session token is still valid.
func (c *Client) ValidateSession(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/session", nil, nil)
}

// CreateRef mints a new reference with a fresh document behind it.
func (c *Client) CreateRef(ctx context.Context, req CreateRefParams) (domain.RefID, error) {
	body := createRefRequest{
		Type:       string(req.Type),
		Name:       req.Name,
		TheoryID:   req.TheoryID,
		DiagramIn:  req.DiagramIn.String(),
		AnalysisOf: req.AnalysisOf.String(),
	}
	if req.Public != domain.PermissionNone {
		body.Public = req.Public.String()
	}
	var resp createRefResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/refs", body, &resp); err != nil {
		return "", err
	}
	return domain.RefID(resp.RefID), nil
}

// CreateRefParams are the inputs for CreateRef.
type CreateRefParams struct {
	Type       domain.DocumentType
	Name       string
	TheoryID   string
	Public     domain.PermissionLevel
	DiagramIn  domain.RefID
	AnalysisOf domain.RefID
}

// DeleteRef soft-deletes a reference.
func (c *Client) DeleteRef(ctx context.Context, refID domain.RefID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/refs/%s", refID), nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		err := c.doOnce(ctx, method, path, body, out)
		if err != nil && apperrors.TypeOf(err) != apperrors.ErrorTypeInternal &&
			apperrors.TypeOf(err) != apperrors.ErrorTypeUnavailable {
			// Well-classified responses mean the backend is healthy;
			// surface them without counting against the breaker.
			return nil, &shortCircuit{err}
		}
		return nil, err
	})
	if err == nil {
		return nil
	}
	var sc *shortCircuit
	if errors.As(err, &sc) {
		return sc.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewUnavailable("backend circuit breaker open", err)
	}
	return err
}

// shortCircuit carries a classified application error through the breaker
// without counting it as a backend failure.
type shortCircuit struct{ err error }

func (s *shortCircuit) Error() string { return s.err.Error() }

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternal("encoding request", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternal("building request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperrors.NewUnavailable("backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewInternal("decoding response", err)
		}
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	msg := body.Message
	if msg == "" {
		msg = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &apperrors.Error{Type: apperrors.ErrorTypeNotFound, Code: "REFERENCE_NOT_FOUND", Message: msg}
	case http.StatusForbidden:
		return &apperrors.Error{Type: apperrors.ErrorTypePermission, Code: "INSUFFICIENT_PERMISSIONS", Message: msg}
	case http.StatusUnauthorized:
		return apperrors.NewSessionInvalid(nil)
	case http.StatusBadRequest:
		return apperrors.NewValidation(msg)
	case http.StatusConflict:
		return apperrors.NewConflict(msg, "")
	case http.StatusServiceUnavailable:
		return apperrors.NewUnavailable(msg, nil)
	default:
		return apperrors.NewInternal(fmt.Sprintf("backend returned %s", resp.Status), nil)
	}
}
