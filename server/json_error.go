package server

import (
	"encoding/json"
	"errors"
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/storacha/filecoin-services-sub000/app"
	"github.com/storacha/filecoin-services-sub000/precompiles/warmstorage"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

type jsonErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, message string, hint string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonErrorResponse{
		Error: message,
		Hint:  hint,
	})
}

// queryStatus maps a query error to an HTTP status and hint.
func queryStatus(err error) (int, string) {
	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, ""
	}
	switch st.Code() {
	case codes.NotFound:
		return http.StatusNotFound, ""
	case codes.InvalidArgument:
		return http.StatusBadRequest, ""
	case codes.FailedPrecondition:
		return http.StatusConflict, "the data set is not in a state that answers this query"
	case codes.Unavailable:
		return http.StatusServiceUnavailable, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

func errorMessage(err error) string {
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

// deliverStatus maps a rejected call to an HTTP status.
func deliverStatus(err error) int {
	switch {
	case errors.Is(err, warmstorage.ErrInvalidCalldata):
		return http.StatusBadRequest
	case errorsmod.IsOf(err,
		types.ErrOnlyVerifier,
		types.ErrOnlyPayments,
		types.ErrCallerNotPayerOrPayee,
		types.ErrOperatorNotApproved,
		types.ErrInvalidSignature,
		types.ErrInvalidSignatureLength,
		types.ErrUnsupportedSignatureV,
	):
		return http.StatusForbidden
	case errorsmod.IsOf(err, types.ErrDataSetNotFound, types.ErrRailNotFound, app.ErrRailUnknown):
		return http.StatusNotFound
	case errorsmod.IsOf(err,
		types.ErrDataSetExists,
		types.ErrAlreadyTerminated,
		types.ErrBeyondEndEpoch,
		types.ErrNonceAlreadyUsed,
		types.ErrNextProvingPeriodAlreadyCalled,
		types.ErrProvingNotStarted,
		types.ErrProofAlreadySubmitted,
		types.ErrProvingPeriodPassed,
		types.ErrChallengeWindowTooEarly,
		types.ErrOldPayeeMismatch,
		app.ErrRailTerminated,
	):
		return http.StatusConflict
	}
	if codespace, _, _ := errorsmod.ABCIInfo(err, false); codespace == types.ModuleName {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func deliverHint(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "check the calldata against the callback ABI"
	case http.StatusForbidden:
		return "the caller or signature is not authorised for this call"
	case http.StatusConflict:
		return "the data set is not in a state that accepts this call"
	default:
		return ""
	}
}
