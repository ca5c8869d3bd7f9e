package api

import (
	"net/http"
	"strings"

	"github.com/better-wallet/multisig/internal/multisig"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// SubmitSignatureRequest carries an approving signature over the request payload
type SubmitSignatureRequest struct {
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

// RejectRequestBody carries an optional rejection reason. Signers without a linked
// user also send their public key and a signature over the rejection payload.
type RejectRequestBody struct {
	Reason    string `json:"reason,omitempty"`
	Signature string `json:"signature,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
}

// handleApprovalOperationsRouter routes /v1/approvals/pending and /v1/approvals/{id}[/...]
func (s *Server) handleApprovalOperationsRouter(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/approvals/"), "/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" || len(pathParts) > 2 {
		s.writeError(w, r, errNotFound(r))
		return
	}

	if pathParts[0] == "pending" && len(pathParts) == 1 {
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w, r)
			return
		}
		s.handleListPending(w, r)
		return
	}

	requestID, ok := s.parseID(w, r, pathParts[0], "approval request")
	if !ok {
		return
	}

	action := ""
	if len(pathParts) == 2 {
		action = pathParts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGetApprovalRequest(w, r, requestID)
	case action == "status" && r.Method == http.MethodGet:
		s.handleGetApprovalStatus(w, r, requestID)
	case action == "payload" && r.Method == http.MethodGet:
		s.handleGetSigningPayload(w, r, requestID)
	case action == "signatures" && r.Method == http.MethodPost:
		s.handleSubmitSignature(w, r, requestID)
	case action == "reject" && r.Method == http.MethodPost:
		s.handleRejectRequest(w, r, requestID)
	case action == "broadcast" && r.Method == http.MethodPost:
		s.handleBroadcast(w, r, requestID)
	case action == "" || action == "status" || action == "payload" ||
		action == "signatures" || action == "reject" || action == "broadcast":
		s.methodNotAllowed(w, r)
	default:
		s.writeError(w, r, errNotFound(r))
	}
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	requests, err := s.service.ListPendingForUser(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ListResponse[*types.ApprovalRequest]{Data: requests})
}

func (s *Server) handleGetApprovalRequest(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	detail, err := s.service.GetApprovalRequest(r.Context(), caller, requestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetApprovalStatus(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	// visibility follows the request itself
	if _, err := s.service.GetApprovalRequest(r.Context(), caller, requestID); err != nil {
		s.writeError(w, r, err)
		return
	}

	status, err := s.service.GetApprovalStatus(r.Context(), requestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetSigningPayload(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	switch query.Get("decision") {
	case "", string(types.DecisionApprove):
		payload, err := s.service.GetSigningPayload(r.Context(), caller, requestID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, payload)
	case string(types.DecisionReject):
		payload, err := s.service.GetRejectionPayload(r.Context(), caller, requestID, strings.TrimSpace(query.Get("reason")))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, payload)
	default:
		s.writeError(w, r, apperrors.ErrBadRequest.WithDetail("decision must be approve or reject"))
	}
}

func (s *Server) handleSubmitSignature(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req SubmitSignatureRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Signature == "" || req.PublicKey == "" {
		s.writeError(w, r, apperrors.ErrBadRequest.WithDetail("signature and public_key are required"))
		return
	}

	approval, err := s.service.SubmitSignature(r.Context(), caller, requestID, req.Signature, req.PublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, approval)
}

func (s *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req RejectRequestBody
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}

	approval, err := s.service.RejectRequest(r.Context(), caller, requestID, multisig.RejectInput{
		Reason:    strings.TrimSpace(req.Reason),
		Signature: req.Signature,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, approval)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	req, err := s.service.BroadcastTransaction(r.Context(), caller, requestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func errNotFound(r *http.Request) *apperrors.AppError {
	return apperrors.ErrNotFound.WithDetail("no route for " + r.Method + " " + r.URL.Path)
}
