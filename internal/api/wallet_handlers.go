package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/better-wallet/multisig/internal/multisig"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// CreateWalletRequest represents the request to create a multisig wallet
type CreateWalletRequest struct {
	Name               string `json:"name"`
	Chain              string `json:"chain"`
	RequiredSignatures int    `json:"required_signatures"`
	TotalSigners       int    `json:"total_signers"`
	ApprovalTTLSeconds int64  `json:"approval_ttl_seconds,omitempty"`
	Address            string `json:"address,omitempty"`
}

// AssignAddressRequest sets a wallet's on-chain address
type AssignAddressRequest struct {
	Address string `json:"address"`
}

// AddSignerRequest represents the request to register a signer
type AddSignerRequest struct {
	SignerType       types.SignerType `json:"signer_type"`
	PublicKey        string           `json:"public_key"`
	Address          string           `json:"address,omitempty"`
	UserID           *uuid.UUID       `json:"user_id,omitempty"`
	HardwareWalletID *uuid.UUID       `json:"hardware_wallet_id,omitempty"`
	Label            string           `json:"label,omitempty"`
}

// CreateApprovalRequestBody represents the request to open an approval request
type CreateApprovalRequestBody struct {
	RequestType     types.RequestType     `json:"request_type,omitempty"`
	TransactionData types.TransactionData `json:"transaction_data"`
	Metadata        json.RawMessage       `json:"metadata,omitempty"`
}

// ListResponse wraps collection responses
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

var walletSubresources = map[string]bool{
	"suspend": true, "reactivate": true, "address": true, "signers": true, "approvals": true,
}

// handleWallets handles wallet list and creation
func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListWallets(w, r)
	case http.MethodPost:
		s.handleCreateWallet(w, r)
	default:
		s.methodNotAllowed(w, r)
	}
}

// handleWalletOperationsRouter routes /v1/multisig-wallets/{id}[/...]
func (s *Server) handleWalletOperationsRouter(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/multisig-wallets/"), "/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		s.writeError(w, r, errNotFound(r))
		return
	}

	walletID, ok := s.parseID(w, r, pathParts[0], "wallet")
	if !ok {
		return
	}

	switch {
	case len(pathParts) == 1 && r.Method == http.MethodGet:
		s.handleGetWallet(w, r, walletID)
	case len(pathParts) == 2 && pathParts[1] == "suspend" && r.Method == http.MethodPost:
		s.handleSetWalletStatus(w, r, walletID, true)
	case len(pathParts) == 2 && pathParts[1] == "reactivate" && r.Method == http.MethodPost:
		s.handleSetWalletStatus(w, r, walletID, false)
	case len(pathParts) == 2 && pathParts[1] == "address" && r.Method == http.MethodPost:
		s.handleAssignAddress(w, r, walletID)
	case len(pathParts) == 2 && pathParts[1] == "signers" && r.Method == http.MethodGet:
		s.handleListSigners(w, r, walletID)
	case len(pathParts) == 2 && pathParts[1] == "signers" && r.Method == http.MethodPost:
		s.handleAddSigner(w, r, walletID)
	case len(pathParts) == 3 && pathParts[1] == "signers" && r.Method == http.MethodDelete:
		signerID, ok := s.parseID(w, r, pathParts[2], "signer")
		if !ok {
			return
		}
		s.handleRemoveSigner(w, r, walletID, signerID)
	case len(pathParts) == 2 && pathParts[1] == "approvals" && r.Method == http.MethodGet:
		s.handleListWalletApprovals(w, r, walletID)
	case len(pathParts) == 2 && pathParts[1] == "approvals" && r.Method == http.MethodPost:
		s.handleCreateApprovalRequest(w, r, walletID)
	case len(pathParts) == 1 || (len(pathParts) <= 3 && walletSubresources[pathParts[1]]):
		s.methodNotAllowed(w, r)
	default:
		s.writeError(w, r, errNotFound(r))
	}
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req CreateWalletRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	wallet, err := s.service.CreateWallet(r.Context(), caller, multisig.CreateWalletInput{
		Name:               req.Name,
		Chain:              req.Chain,
		RequiredSignatures: req.RequiredSignatures,
		TotalSigners:       req.TotalSigners,
		ApprovalTTL:        time.Duration(req.ApprovalTTLSeconds) * time.Second,
		Address:            req.Address,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	wallets, err := s.service.ListWallets(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ListResponse[*types.MultiSigWallet]{Data: wallets})
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	wallet, err := s.service.GetWallet(r.Context(), caller, walletID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleSetWalletStatus(w http.ResponseWriter, r *http.Request, walletID uuid.UUID, suspend bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var (
		wallet *types.MultiSigWallet
		err    error
	)
	if suspend {
		wallet, err = s.service.SuspendWallet(r.Context(), caller, walletID)
	} else {
		wallet, err = s.service.ReactivateWallet(r.Context(), caller, walletID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleAssignAddress(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req AssignAddressRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	wallet, err := s.service.AssignAddress(r.Context(), caller, walletID, strings.TrimSpace(req.Address))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleListSigners(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	signers, err := s.service.ListSigners(r.Context(), caller, walletID, includeInactive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ListResponse[*types.Signer]{Data: signers})
}

func (s *Server) handleAddSigner(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req AddSignerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	signer, err := s.service.AddSigner(r.Context(), caller, walletID, multisig.AddSignerInput{
		SignerType:       req.SignerType,
		PublicKey:        req.PublicKey,
		Address:          req.Address,
		UserID:           req.UserID,
		HardwareWalletID: req.HardwareWalletID,
		Label:            req.Label,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, signer)
}

func (s *Server) handleRemoveSigner(w http.ResponseWriter, r *http.Request, walletID, signerID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := s.service.RemoveSigner(r.Context(), caller, walletID, signerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListWalletApprovals(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var status *types.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := types.RequestStatus(raw)
		status = &st
	}

	requests, err := s.service.ListApprovalRequests(r.Context(), caller, walletID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ListResponse[*types.ApprovalRequest]{Data: requests})
}

func (s *Server) handleCreateApprovalRequest(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req CreateApprovalRequestBody
	if !s.decodeJSON(w, r, &req) {
		return
	}

	created, err := s.service.CreateApprovalRequest(r.Context(), caller, walletID, multisig.CreateApprovalRequestInput{
		RequestType:     req.RequestType,
		TransactionData: req.TransactionData,
		Metadata:        req.Metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}
