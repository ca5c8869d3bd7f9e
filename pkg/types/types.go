package types

// Chain constants
const (
	ChainEthereum = "ethereum"
	ChainBitcoin  = "bitcoin"
	ChainPolygon  = "polygon"
	ChainBSC      = "bsc"
)

// Wallet status constants
const (
	WalletStatusActive    = "active"
	WalletStatusSuspended = "suspended"
)

// MaxSigners is the upper bound on total_signers for any wallet
const MaxSigners = 10

// SignerType identifies how a signer holds its key
type SignerType string

const (
	SignerTypeInternal       SignerType = "internal"
	SignerTypeHardwareLedger SignerType = "hardware_ledger"
	SignerTypeHardwareTrezor SignerType = "hardware_trezor"
	SignerTypeExternal       SignerType = "external"
)

// AllSignerTypes returns every supported signer type
func AllSignerTypes() []SignerType {
	return []SignerType{
		SignerTypeInternal,
		SignerTypeHardwareLedger,
		SignerTypeHardwareTrezor,
		SignerTypeExternal,
	}
}

// IsValid reports whether t is a supported signer type
func (t SignerType) IsValid() bool {
	for _, st := range AllSignerTypes() {
		if t == st {
			return true
		}
	}
	return false
}

// IsHardware reports whether the signer is backed by a hardware wallet
func (t SignerType) IsHardware() bool {
	return t == SignerTypeHardwareLedger || t == SignerTypeHardwareTrezor
}

// DeviceType returns the hardware device type matching the signer type, or "" for software signers
func (t SignerType) DeviceType() string {
	switch t {
	case SignerTypeHardwareLedger:
		return DeviceTypeLedger
	case SignerTypeHardwareTrezor:
		return DeviceTypeTrezor
	default:
		return ""
	}
}

// RequestType distinguishes outbound transactions from wallet configuration changes
type RequestType string

const (
	RequestTypeTransaction  RequestType = "transaction"
	RequestTypeConfigChange RequestType = "config_change"
)

// IsValid reports whether rt is a supported request type
func (rt RequestType) IsValid() bool {
	return rt == RequestTypeTransaction || rt == RequestTypeConfigChange
}

// RequestStatus is the lifecycle state of an approval request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusExpired   RequestStatus = "expired"
	RequestStatusBroadcast RequestStatus = "broadcast"
)

// IsValid reports whether s is a known request status
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected,
		RequestStatusExpired, RequestStatusBroadcast:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusRejected || s == RequestStatusExpired || s == RequestStatusBroadcast
}

// Decision is a signer's vote on an approval request
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Hardware device types
const (
	DeviceTypeLedger = "ledger"
	DeviceTypeTrezor = "trezor"
)
