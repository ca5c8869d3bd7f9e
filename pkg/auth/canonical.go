package auth

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/better-wallet/multisig/pkg/types"
	"golang.org/x/crypto/sha3"
)

// PayloadVersion is the current approval payload schema version
const PayloadVersion = "v1"

// ApprovalPayload is the document every signer signs when approving a request.
// Binding the request and wallet IDs prevents a signature from being replayed on another request.
type ApprovalPayload struct {
	Version           string                `json:"version"`
	ApprovalRequestID string                `json:"approval_request_id"`
	WalletID          string                `json:"wallet_id"`
	Chain             string                `json:"chain"`
	RequestType       string                `json:"request_type"`
	TransactionData   types.TransactionData `json:"transaction_data"`
}

// BuildApprovalPayload constructs the canonical payload for an approval request
func BuildApprovalPayload(wallet *types.MultiSigWallet, req *types.ApprovalRequest) (*ApprovalPayload, []byte, error) {
	payload := &ApprovalPayload{
		Version:           PayloadVersion,
		ApprovalRequestID: req.ID.String(),
		WalletID:          wallet.ID.String(),
		Chain:             wallet.Chain,
		RequestType:       string(req.RequestType),
		TransactionData:   req.TransactionData,
	}

	canonicalBytes, err := SerializeCanonical(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize canonical payload: %w", err)
	}

	return payload, canonicalBytes, nil
}

// RejectionPayload is the document a signer without a linked user signs to reject a
// request. Its distinct decision field keeps an approval signature from counting as a rejection.
type RejectionPayload struct {
	Version           string `json:"version"`
	Decision          string `json:"decision"`
	ApprovalRequestID string `json:"approval_request_id"`
	WalletID          string `json:"wallet_id"`
	Chain             string `json:"chain"`
	Reason            string `json:"reason"`
}

// BuildRejectionPayload constructs the canonical rejection payload for a request
func BuildRejectionPayload(wallet *types.MultiSigWallet, req *types.ApprovalRequest, reason string) (*RejectionPayload, []byte, error) {
	payload := &RejectionPayload{
		Version:           PayloadVersion,
		Decision:          string(types.DecisionReject),
		ApprovalRequestID: req.ID.String(),
		WalletID:          wallet.ID.String(),
		Chain:             wallet.Chain,
		Reason:            reason,
	}

	canonicalBytes, err := SerializeCanonical(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize canonical rejection: %w", err)
	}

	return payload, canonicalBytes, nil
}

// SerializeCanonical serializes a value to RFC 8785 style canonical JSON.
// Numbers are decoded as json.Number so amounts keep their exact textual form.
func SerializeCanonical(v any) ([]byte, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.UseNumber()

	var intermediate any
	if err := dec.Decode(&intermediate); err != nil {
		return nil, err
	}

	return canonicalJSON(intermediate)
}

// canonicalJSON produces RFC 8785 canonical JSON encoding
func canonicalJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return canonicalObject(val)
	case []any:
		return canonicalArray(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("{")

	for i, key := range keys {
		if i > 0 {
			buf.WriteString(",")
		}

		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteString(":")

		valJSON, err := canonicalJSON(obj[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}

	buf.WriteString("}")
	return buf.Bytes(), nil
}

func canonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")

	for i, item := range arr {
		if i > 0 {
			buf.WriteString(",")
		}

		itemJSON, err := canonicalJSON(item)
		if err != nil {
			return nil, err
		}
		buf.Write(itemJSON)
	}

	buf.WriteString("]")
	return buf.Bytes(), nil
}

// PayloadDigest returns the hex SHA3-256 digest of a canonical payload.
// It is stored with every approval so the signed document can be identified later.
func PayloadDigest(canonicalBytes []byte) string {
	hash := sha3.Sum256(canonicalBytes)
	return hex.EncodeToString(hash[:])
}
