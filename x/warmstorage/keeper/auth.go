package keeper

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func requireVerifier(params types.Params, caller common.Address) error {
	if caller != params.VerifierAddress {
		return types.ErrOnlyVerifier.Wrapf("caller %s, verifier %s", caller.Hex(), params.VerifierAddress.Hex())
	}
	return nil
}

func requirePayments(params types.Params, caller common.Address) error {
	if caller != params.PaymentsAddress {
		return types.ErrOnlyPayments.Wrapf("caller %s, payments %s", caller.Hex(), params.PaymentsAddress.Hex())
	}
	return nil
}

func requirePayerOrPayee(info types.DataSetInfo, caller common.Address) error {
	if caller != info.Payer && caller != info.Payee {
		return types.ErrCallerNotPayerOrPayee.Wrapf("data set %d, caller %s", info.Id, caller.Hex())
	}
	return nil
}

// requireApprovedOperator consults the operator directory when the policy
// is enabled.
func (k Keeper) requireApprovedOperator(ctx context.Context, params types.Params, operator common.Address) error {
	if !params.RequireApprovedOperator {
		return nil
	}
	if k.operators == nil {
		return types.ErrOperatorNotApproved.Wrap("no operator directory configured")
	}
	ok, err := k.operators.IsApprovedOperator(ctx, operator)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrOperatorNotApproved.Wrapf("operator %s", operator.Hex())
	}
	return nil
}
