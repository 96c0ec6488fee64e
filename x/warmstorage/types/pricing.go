package types

import (
	"cosmossdk.io/math"
)

// TiB is the unit prices are quoted in.
const TiB = 1 << 40

func tokenScale(decimals uint32) math.Int {
	return math.NewIntWithDecimal(1, int(decimals))
}

// QuoteServicePrice converts the whole-token prices in p to base units.
func QuoteServicePrice(p Params) ServicePrice {
	scale := tokenScale(p.TokenDecimals)
	storage := p.StoragePricePerTibPerMonth.MulInt(scale).TruncateInt()
	cdn := p.CdnPricePerTibPerMonth.MulInt(scale).TruncateInt()
	return ServicePrice{
		PricePerTibPerMonthNoCDN:   storage,
		PricePerTibPerMonthWithCDN: storage.Add(cdn),
		Token:                      p.PaymentToken,
		EpochsPerMonth:             p.EpochsPerMonth,
	}
}

// StorageRatePerEpoch is the PDP rail rate for sizeBytes of stored data,
// never less than the monthly minimum spread over a month.
func StorageRatePerEpoch(p Params, sizeBytes uint64) (math.Int, error) {
	if p.EpochsPerMonth == 0 {
		return math.Int{}, ErrInvalidParams.Wrap("epochs per month must be positive")
	}
	scale := tokenScale(p.TokenDecimals)
	price := p.StoragePricePerTibPerMonth.MulInt(scale).TruncateInt()

	num, err := price.SafeMul(math.NewIntFromUint64(sizeBytes))
	if err != nil {
		return math.Int{}, ErrArithmeticOverflow.Wrapf("rate numerator: %s", err)
	}
	denom := math.NewInt(TiB).Mul(math.NewIntFromUint64(p.EpochsPerMonth))
	rate, err := num.SafeQuo(denom)
	if err != nil {
		return math.Int{}, ErrArithmeticOverflow.Wrapf("rate: %s", err)
	}

	minimum := p.MinimumPricePerMonth.MulInt(scale).TruncateInt().Quo(math.NewIntFromUint64(p.EpochsPerMonth))
	return math.MaxInt(rate, minimum), nil
}

// RateForLeafCount prices a data set of leafCount proof leaves.
func RateForLeafCount(p Params, leafCount uint64) (math.Int, error) {
	size, err := MulEpochs(leafCount, LeafSize)
	if err != nil {
		return math.Int{}, err
	}
	return StorageRatePerEpoch(p, size)
}
