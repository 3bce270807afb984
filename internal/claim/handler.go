package claim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/expense-claims/internal"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
	"github.com/frahmantamala/expense-claims/internal/transport"
	"github.com/frahmantamala/expense-claims/pkg/logger"
)

const (
	uploadField           = "file"
	defaultMaxUploadBytes = 10 << 20
	multipartMemory       = 1 << 20
)

type ServiceAPI interface {
	Submit(ctx context.Context, p *coreuser.Principal, dto SubmitClaimDTO) (*Claim, error)
	Approve(ctx context.Context, p *coreuser.Principal, id int64) error
	Reject(ctx context.Context, p *coreuser.Principal, id int64, reason string) error
	CreateWithReceipt(ctx context.Context, p *coreuser.Principal, file io.Reader, filename string) (*Claim, error)
	AttachReceipt(ctx context.Context, p *coreuser.Principal, id int64, file io.Reader, filename string) (*Claim, error)
	GetByID(ctx context.Context, p *coreuser.Principal, id int64) (*Claim, error)
	List(ctx context.Context, p *coreuser.Principal, status string) ([]*Claim, error)
	Summary(ctx context.Context, p *coreuser.Principal) ([]StatusSummary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(service ServiceAPI, maxUploadBytes int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		BaseHandler:    transport.NewBaseHandler(lg),
		Service:        service,
		MaxUploadBytes: maxUploadBytes,
	}
}

// Submit handles POST /expenses/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var dto SubmitClaimDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.Submit(r.Context(), p, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SubmitResponse{Message: "Claim submitted!", ID: c.ID})
}

// Approve handles PUT /expenses/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.claimID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Approve(r.Context(), p, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "Claim approved!")
}

// Reject handles PUT /expenses/{id}/reject. The reason comes from the query
// string and falls back to a JSON body.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.claimID(w, r)
	if !ok {
		return
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" && r.Body != nil {
		var dto RejectClaimDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		reason = dto.Reason
	}

	if err := h.Service.Reject(r.Context(), p, id, reason); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "Claim rejected!")
}

// Upload handles POST /expenses/upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	file, filename, ok := h.uploadedFile(w, r)
	if !ok {
		return
	}
	defer closeUpload(r, file)

	c, err := h.Service.CreateWithReceipt(r.Context(), p, file, filename)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ReceiptResponse{
		Message:    "File uploaded successfully!",
		ID:         c.ID,
		ReceiptURL: *c.ReceiptURL,
	})
}

// AttachReceipt handles PUT /expenses/{id}/receipt
func (h *Handler) AttachReceipt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.claimID(w, r)
	if !ok {
		return
	}

	file, filename, ok := h.uploadedFile(w, r)
	if !ok {
		return
	}
	defer closeUpload(r, file)

	c, err := h.Service.AttachReceipt(r.Context(), p, id, file, filename)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ReceiptResponse{
		Message:    "Receipt attached!",
		ID:         c.ID,
		ReceiptURL: *c.ReceiptURL,
	})
}

// GetClaim handles GET /expenses/{id}
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.claimID(w, r)
	if !ok {
		return
	}

	c, err := h.Service.GetByID(r.Context(), p, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c.ToResponse())
}

// ListClaims handles GET /expenses
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	claims, err := h.Service.List(r.Context(), p, r.URL.Query().Get("status"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp := ClaimsResponse{Claims: make([]ClaimResponse, 0, len(claims)), Count: len(claims)}
	for _, c := range claims {
		resp.Claims = append(resp.Claims, c.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Summary handles GET /expenses/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	rows, err := h.Service.Summary(r.Context(), p)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp := SummaryResponse{Statuses: make([]StatusSummaryResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Statuses = append(resp.Statuses, StatusSummaryResponse{
			Status: row.Status,
			Count:  row.Count,
			Total:  row.Total.StringFixed(2),
		})
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*coreuser.Principal, bool) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return nil, false
	}
	return p, true
}

func (h *Handler) claimID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid claim id")
		return 0, false
	}
	return id, true
}

// uploadedFile reads the multipart "file" field, capped at MaxUploadBytes.
func (h *Handler) uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, "", false
		}
		h.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return nil, "", false
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	return file, header.Filename, true
}

func closeUpload(r *http.Request, file io.Closer) {
	_ = file.Close()
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
