package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionData is the payload signers approve.
// Amount is a decimal string so large values survive JSON round trips.
type TransactionData struct {
	To             string         `json:"to,omitempty"`
	Amount         string         `json:"amount,omitempty"`
	Asset          string         `json:"asset,omitempty"`
	Data           string         `json:"data,omitempty"`
	RawTransaction string         `json:"raw_transaction,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// UnmarshalJSON decodes numbers in Extra as json.Number, so a value like a 20-digit
// nonce reaches the signed payload exactly as the initiator wrote it.
func (d *TransactionData) UnmarshalJSON(b []byte) error {
	type plain TransactionData
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*d = TransactionData(p)
	return nil
}

// Clone returns a copy of d that shares no maps or slices with it
func (d TransactionData) Clone() TransactionData {
	d.Extra = cloneJSONObject(d.Extra)
	return d
}

func cloneJSONObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneJSONObject(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneJSONValue(item)
		}
		return out
	default:
		return v
	}
}

// IsEmpty reports whether no field of the payload is set
func (d TransactionData) IsEmpty() bool {
	return d.To == "" && d.Amount == "" && d.Asset == "" && d.Data == "" &&
		d.RawTransaction == "" && len(d.Extra) == 0
}

// ApprovalRequest is a transaction or configuration change awaiting signer quorum
type ApprovalRequest struct {
	ID                 uuid.UUID       `json:"id"`
	WalletID           uuid.UUID       `json:"wallet_id"`
	InitiatorID        uuid.UUID       `json:"initiator_id"`
	RequestType        RequestType     `json:"request_type"`
	TransactionData    TransactionData `json:"transaction_data"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	RequiredSignatures int             `json:"required_signatures"`
	CurrentSignatures  int             `json:"current_signatures"`
	Status             RequestStatus   `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
	DecidedAt          *time.Time      `json:"decided_at,omitempty"`
	BroadcastAt        *time.Time      `json:"broadcast_at,omitempty"`
	TransactionHash    *string         `json:"transaction_hash,omitempty"`
	RawTransaction     *string         `json:"raw_transaction,omitempty"`
	LastBroadcastError *string         `json:"last_broadcast_error,omitempty"`
	Version            int64           `json:"version"`
}

// Clone returns a deep copy of r
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	c := *r
	c.TransactionData = r.TransactionData.Clone()
	if r.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), r.Metadata...)
	}
	c.DecidedAt = clonePtr(r.DecidedAt)
	c.BroadcastAt = clonePtr(r.BroadcastAt)
	c.TransactionHash = clonePtr(r.TransactionHash)
	c.RawTransaction = clonePtr(r.RawTransaction)
	c.LastBroadcastError = clonePtr(r.LastBroadcastError)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IsExpiredAt reports whether a pending request has passed its expiry at now
func (r *ApprovalRequest) IsExpiredAt(now time.Time) bool {
	return r.Status == RequestStatusPending && now.After(r.ExpiresAt)
}

// QuorumReached reports whether enough approvals have been collected
func (r *ApprovalRequest) QuorumReached() bool {
	return r.CurrentSignatures >= r.RequiredSignatures
}

// StatusAt projects the quorum status at now without mutating the request
func (r *ApprovalRequest) StatusAt(now time.Time) ApprovalStatus {
	remaining := r.RequiredSignatures - r.CurrentSignatures
	if remaining < 0 {
		remaining = 0
	}
	return ApprovalStatus{
		RequestID:     r.ID,
		Status:        r.Status,
		Required:      r.RequiredSignatures,
		Current:       r.CurrentSignatures,
		Remaining:     remaining,
		QuorumReached: r.QuorumReached(),
		IsExpired:     r.Status == RequestStatusExpired || r.IsExpiredAt(now),
		ExpiresAt:     r.ExpiresAt,
	}
}

// ApprovalStatus is the read-side quorum projection of an approval request
type ApprovalStatus struct {
	RequestID     uuid.UUID     `json:"request_id"`
	Status        RequestStatus `json:"status"`
	Required      int           `json:"required"`
	Current       int           `json:"current"`
	Remaining     int           `json:"remaining"`
	QuorumReached bool          `json:"quorum_reached"`
	IsExpired     bool          `json:"is_expired"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// SignerApproval is one signer's recorded vote on an approval request
type SignerApproval struct {
	ID                uuid.UUID `json:"id"`
	ApprovalRequestID uuid.UUID `json:"approval_request_id"`
	SignerID          uuid.UUID `json:"signer_id"`
	Decision          Decision  `json:"decision"`
	Signature         string    `json:"signature,omitempty"`
	PublicKey         string    `json:"public_key"`
	PayloadDigest     string    `json:"payload_digest"`
	Reason            *string   `json:"reason,omitempty"`
	DecidedAt         time.Time `json:"decided_at"`
}

// AuditLog records a state change made by the approval engine
type AuditLog struct {
	ID           int64     `json:"id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Detail       *string   `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
