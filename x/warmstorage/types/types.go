package types

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// WithCDNMetadataKey is the reserved data set metadata key that opts a
	// data set into CDN service. Its value is ignored.
	WithCDNMetadataKey = "withCDN"

	// LeafSize is the number of bytes covered by one proof leaf.
	LeafSize = 32
)

// DataSetInfo binds a verifier data set to the parties and rails paying for it.
type DataSetInfo struct {
	Id              uint64         `json:"id"`
	Payer           common.Address `json:"payer"`
	Payee           common.Address `json:"payee"`
	PdpRailId       uint64         `json:"pdp_rail_id"`
	CacheMissRailId uint64         `json:"cache_miss_rail_id"`
	CdnRailId       uint64         `json:"cdn_rail_id"`
	ClientDataSetId uint64         `json:"client_data_set_id"`
	// PaymentEndEpoch is zero while the agreement is active.
	PaymentEndEpoch uint64 `json:"payment_end_epoch"`
	CreatedEpoch    uint64 `json:"created_epoch"`
}

// WithCDN reports whether the data set was created with CDN rails.
func (d DataSetInfo) WithCDN() bool {
	return d.CdnRailId != 0
}

// Terminated reports whether a payment end epoch has been recorded.
func (d DataSetInfo) Terminated() bool {
	return d.PaymentEndEpoch != 0
}

// RailIds returns the non-zero rails of the data set, PDP first.
func (d DataSetInfo) RailIds() []uint64 {
	ids := []uint64{d.PdpRailId}
	if d.WithCDN() {
		ids = append(ids, d.CacheMissRailId, d.CdnRailId)
	}
	return ids
}

// Validate checks the rail pairing invariant.
func (d DataSetInfo) Validate() error {
	if d.PdpRailId == 0 {
		return ErrRailNotFound.Wrapf("data set %d has no pdp rail", d.Id)
	}
	if (d.CacheMissRailId == 0) != (d.CdnRailId == 0) {
		return ErrRailNotFound.Wrapf("data set %d has unpaired cdn rails (%d, %d)", d.Id, d.CacheMissRailId, d.CdnRailId)
	}
	return nil
}

// DataSetParties is the payer/payee pair of a data set.
type DataSetParties struct {
	Payer common.Address `json:"payer"`
	Payee common.Address `json:"payee"`
}

// ProvingState tracks the proving schedule of one data set.
type ProvingState struct {
	// ActivationEpoch is the epoch the first proving period started at.
	// Period boundaries stay on the grid it defines.
	ActivationEpoch uint64 `json:"activation_epoch"`
	// Deadline is the last epoch a proof is accepted for the current
	// period. Zero while proving is inactive.
	Deadline           uint64 `json:"deadline"`
	NextChallengeEpoch uint64 `json:"next_challenge_epoch"`
	ProvenThisPeriod   bool   `json:"proven_this_period"`
	LeafCount          uint64 `json:"leaf_count"`
}

// Active reports whether a deadline is scheduled.
func (s ProvingState) Active() bool {
	return s.Deadline != 0
}

// MetadataEntry is one key/value pair as it is signed and stored.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RailParams describes a payment rail to open in the ledger.
type RailParams struct {
	Token         common.Address
	From          common.Address
	To            common.Address
	Validator     common.Address
	CommissionBps uint64
	FeeRecipient  common.Address
}

// ValidationResult is the arbiter's answer to a settlement request.
type ValidationResult struct {
	ModifiedAmount math.Int `json:"modified_amount"`
	SettleUpto     uint64   `json:"settle_upto"`
	Note           string   `json:"note"`
}

// ServicePrice quotes the per TiB per month price in token base units.
type ServicePrice struct {
	PricePerTibPerMonthNoCDN   math.Int       `json:"price_per_tib_per_month_no_cdn"`
	PricePerTibPerMonthWithCDN math.Int       `json:"price_per_tib_per_month_with_cdn"`
	Token                      common.Address `json:"token"`
	EpochsPerMonth             uint64         `json:"epochs_per_month"`
}

// PDPConfig is the proving schedule a storage provider plans against.
type PDPConfig struct {
	MaxProvingPeriod         uint64 `json:"max_proving_period"`
	ChallengeWindow          uint64 `json:"challenge_window"`
	ChallengesPerProof       uint64 `json:"challenges_per_proof"`
	InitChallengeWindowStart uint64 `json:"init_challenge_window_start"`
}

// MetadataLookup is the answer to a single-key metadata query.
type MetadataLookup struct {
	Exists bool   `json:"exists"`
	Value  string `json:"value"`
}
