package types

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// BasisPoints is the denominator for commission rates.
	BasisPoints = 10_000

	// MaxTokenDecimals bounds the scale applied to whole-token prices.
	MaxTokenDecimals = 36
)

// Params are the controller-wide settings. They are written by migration 1
// and read by every operation.
type Params struct {
	// MaxProvingPeriod is the length of one proving period in epochs.
	MaxProvingPeriod uint64 `json:"max_proving_period"`
	// ChallengeWindowSize is the trailing part of a proving period during
	// which a proof is accepted. Strictly less than MaxProvingPeriod.
	ChallengeWindowSize uint64 `json:"challenge_window_size"`
	// ChallengesPerProof is the challenge count every proof must carry.
	ChallengesPerProof uint64 `json:"challenges_per_proof"`
	// TerminationNoticePeriods is how many proving periods a terminated
	// agreement keeps paying (and accepting proofs) before it ends.
	TerminationNoticePeriods uint64 `json:"termination_notice_periods"`

	EvmChainId      uint64         `json:"evm_chain_id"`
	ServiceAddress  common.Address `json:"service_address"`
	VerifierAddress common.Address `json:"verifier_address"`
	PaymentsAddress common.Address `json:"payments_address"`
	PaymentToken    common.Address `json:"payment_token"`
	TokenDecimals   uint32         `json:"token_decimals"`
	CdnBeneficiary  common.Address `json:"cdn_beneficiary"`

	// Prices are in whole tokens and scaled by TokenDecimals when quoted.
	StoragePricePerTibPerMonth math.LegacyDec `json:"storage_price_per_tib_per_month"`
	CdnPricePerTibPerMonth     math.LegacyDec `json:"cdn_price_per_tib_per_month"`
	MinimumPricePerMonth       math.LegacyDec `json:"minimum_price_per_month"`
	EpochsPerMonth             uint64         `json:"epochs_per_month"`
	CommissionBps              uint64         `json:"commission_bps"`

	// RequireApprovedOperator makes data set creation and payee changes
	// consult the operator directory.
	RequireApprovedOperator bool `json:"require_approved_operator"`
}

// DefaultParams returns a default set of parameters.
func DefaultParams() Params {
	return Params{
		MaxProvingPeriod:           2880,
		ChallengeWindowSize:        60,
		ChallengesPerProof:         5,
		TerminationNoticePeriods:   30,
		EvmChainId:                 314159,
		TokenDecimals:              18,
		StoragePricePerTibPerMonth: math.LegacyNewDec(5),
		CdnPricePerTibPerMonth:     math.LegacyNewDec(2),
		MinimumPricePerMonth:       math.LegacyNewDecWithPrec(6, 2), // 0.06
		EpochsPerMonth:             86400,
		CommissionBps:              0,
	}
}

// NoticeWindow is the number of epochs between a termination request and
// the payment end epoch.
func (p Params) NoticeWindow() (uint64, error) {
	return MulEpochs(p.MaxProvingPeriod, p.TerminationNoticePeriods)
}

// Validate validates the set of params.
func (p Params) Validate() error {
	if p.MaxProvingPeriod == 0 {
		return ErrInvalidParams.Wrap("max proving period must be positive")
	}
	if p.ChallengeWindowSize == 0 || p.ChallengeWindowSize >= p.MaxProvingPeriod {
		return ErrInvalidParams.Wrapf("challenge window size %d must be in (0, %d)", p.ChallengeWindowSize, p.MaxProvingPeriod)
	}
	if p.ChallengesPerProof == 0 {
		return ErrInvalidParams.Wrap("challenges per proof must be positive")
	}
	if p.TerminationNoticePeriods == 0 {
		return ErrInvalidParams.Wrap("termination notice periods must be positive")
	}
	if _, err := p.NoticeWindow(); err != nil {
		return ErrInvalidParams.Wrapf("notice window: %s", err)
	}
	if p.EpochsPerMonth == 0 {
		return ErrInvalidParams.Wrap("epochs per month must be positive")
	}
	if p.CommissionBps > BasisPoints {
		return ErrInvalidParams.Wrapf("commission %d bps exceeds %d", p.CommissionBps, BasisPoints)
	}
	if p.TokenDecimals > MaxTokenDecimals {
		return ErrInvalidParams.Wrapf("token decimals %d exceeds %d", p.TokenDecimals, MaxTokenDecimals)
	}
	for name, d := range map[string]math.LegacyDec{
		"storage price": p.StoragePricePerTibPerMonth,
		"cdn price":     p.CdnPricePerTibPerMonth,
		"minimum price": p.MinimumPricePerMonth,
	} {
		if d.IsNil() || d.IsNegative() {
			return ErrInvalidParams.Wrapf("%s must be non-negative, got %s", name, d)
		}
	}
	return nil
}

// ValidateAddresses checks the addresses a running controller cannot do
// without. CdnBeneficiary is optional; without it CDN data sets are refused.
func (p Params) ValidateAddresses() error {
	for _, a := range []struct {
		name string
		addr common.Address
	}{
		{"verifier", p.VerifierAddress},
		{"payments", p.PaymentsAddress},
		{"service", p.ServiceAddress},
	} {
		if a.addr == (common.Address{}) {
			return ErrZeroAddress.Wrapf("%s address is not configured", a.name)
		}
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("max_proving_period=%d challenge_window=%d challenges=%d notice_periods=%d chain_id=%d",
		p.MaxProvingPeriod, p.ChallengeWindowSize, p.ChallengesPerProof, p.TerminationNoticePeriods, p.EvmChainId)
}
