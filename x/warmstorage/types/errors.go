package types

// DONTCOVER

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
)

// x/warmstorage module sentinel errors
var (
	ErrInvalidParams = errorsmod.Register(ModuleName, 2, "invalid params")

	// authentication
	ErrInvalidSignatureLength = errorsmod.Register(ModuleName, 3, "invalid signature length")
	ErrUnsupportedSignatureV  = errorsmod.Register(ModuleName, 4, "unsupported signature v value")
	ErrInvalidSignature       = errorsmod.Register(ModuleName, 5, "signer does not match payer")

	// validation
	ErrMetadataArrayLengthMismatch   = errorsmod.Register(ModuleName, 6, "metadata keys and values length mismatch")
	ErrTooManyMetadataKeys           = errorsmod.Register(ModuleName, 7, "too many metadata keys")
	ErrMetadataKeyExceedsMaxLength   = errorsmod.Register(ModuleName, 8, "metadata key exceeds max length")
	ErrMetadataValueExceedsMaxLength = errorsmod.Register(ModuleName, 9, "metadata value exceeds max length")
	ErrDuplicateMetadataKey          = errorsmod.Register(ModuleName, 10, "duplicate metadata key")
	ErrInvalidExtraData              = errorsmod.Register(ModuleName, 11, "invalid extra data")
	ErrInvalidPieceCid               = errorsmod.Register(ModuleName, 12, "invalid piece cid")
	ErrZeroAddress                   = errorsmod.Register(ModuleName, 13, "zero address")
	ErrInvalidEpochRange             = errorsmod.Register(ModuleName, 14, "invalid epoch range")
	ErrArithmeticOverflow            = errorsmod.Register(ModuleName, 15, "arithmetic overflow")

	// authorization
	ErrOnlyVerifier          = errorsmod.Register(ModuleName, 16, "caller is not the proof verifier")
	ErrOnlyPayments          = errorsmod.Register(ModuleName, 17, "caller is not the payments ledger")
	ErrCallerNotPayerOrPayee = errorsmod.Register(ModuleName, 18, "caller is not the payer or payee")
	ErrOperatorNotApproved   = errorsmod.Register(ModuleName, 19, "operator is not approved")

	// state
	ErrDataSetNotFound                = errorsmod.Register(ModuleName, 20, "data set not found")
	ErrDataSetExists                  = errorsmod.Register(ModuleName, 21, "data set already exists")
	ErrRailNotFound                   = errorsmod.Register(ModuleName, 22, "rail not associated with a data set")
	ErrOldPayeeMismatch               = errorsmod.Register(ModuleName, 23, "old payee mismatch")
	ErrAlreadyTerminated              = errorsmod.Register(ModuleName, 24, "data set payment already terminated")
	ErrBeyondEndEpoch                 = errorsmod.Register(ModuleName, 25, "current epoch is beyond the payment end epoch")
	ErrNonceAlreadyUsed               = errorsmod.Register(ModuleName, 26, "nonce already used")
	ErrInvalidChallengeEpoch          = errorsmod.Register(ModuleName, 27, "challenge epoch outside the challenge window")
	ErrNextProvingPeriodAlreadyCalled = errorsmod.Register(ModuleName, 28, "next proving period already scheduled")
	ErrProvingNotStarted              = errorsmod.Register(ModuleName, 29, "proving not started")
	ErrProofAlreadySubmitted          = errorsmod.Register(ModuleName, 30, "proof already submitted for this period")
	ErrInvalidChallengeCount          = errorsmod.Register(ModuleName, 31, "invalid challenge count")
	ErrProvingPeriodPassed            = errorsmod.Register(ModuleName, 32, "proving period deadline passed")
	ErrChallengeWindowTooEarly        = errorsmod.Register(ModuleName, 33, "challenge window not open yet")
	ErrEpochBeforeActivation          = errorsmod.Register(ModuleName, 34, "epoch precedes proving activation")
)

// SignatureLengthError reports a signature that is not r‖s‖v.
type SignatureLengthError struct {
	Expected int
	Actual   int
}

func (e *SignatureLengthError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrInvalidSignatureLength, e.Expected, e.Actual)
}

func (e *SignatureLengthError) Unwrap() error { return ErrInvalidSignatureLength }

// UnsupportedSignatureVError reports a recovery byte other than 27 or 28.
type UnsupportedSignatureVError struct {
	V byte
}

func (e *UnsupportedSignatureVError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnsupportedSignatureV, e.V)
}

func (e *UnsupportedSignatureVError) Unwrap() error { return ErrUnsupportedSignatureV }

// InvalidSignatureError reports a well-formed signature by the wrong key.
type InvalidSignatureError struct {
	Expected  common.Address
	Recovered common.Address
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("%s: expected %s, recovered %s", ErrInvalidSignature, e.Expected.Hex(), e.Recovered.Hex())
}

func (e *InvalidSignatureError) Unwrap() error { return ErrInvalidSignature }

type MetadataArrayLengthMismatchError struct {
	KeysLength   int
	ValuesLength int
}

func (e *MetadataArrayLengthMismatchError) Error() string {
	return fmt.Sprintf("%s: %d keys, %d values", ErrMetadataArrayLengthMismatch, e.KeysLength, e.ValuesLength)
}

func (e *MetadataArrayLengthMismatchError) Unwrap() error { return ErrMetadataArrayLengthMismatch }

// PieceMetadataCountMismatchError reports per-piece metadata arrays whose
// length differs from the number of pieces added.
type PieceMetadataCountMismatchError struct {
	Pieces int
	Keys   int
	Values int
}

func (e *PieceMetadataCountMismatchError) Error() string {
	return fmt.Sprintf("%s: %d pieces, %d key lists, %d value lists", ErrMetadataArrayLengthMismatch, e.Pieces, e.Keys, e.Values)
}

func (e *PieceMetadataCountMismatchError) Unwrap() error { return ErrMetadataArrayLengthMismatch }

type TooManyMetadataKeysError struct {
	Max    int
	Actual int
}

func (e *TooManyMetadataKeysError) Error() string {
	return fmt.Sprintf("%s: max %d, got %d", ErrTooManyMetadataKeys, e.Max, e.Actual)
}

func (e *TooManyMetadataKeysError) Unwrap() error { return ErrTooManyMetadataKeys }

// MetadataExceedsMaxLengthError reports the offending entry of a batch.
// IsValue distinguishes a too-long value from a too-long key.
type MetadataExceedsMaxLengthError struct {
	IsValue bool
	Index   int
	Max     int
	Actual  int
}

func (e *MetadataExceedsMaxLengthError) Error() string {
	return fmt.Sprintf("%s: index %d, max %d, got %d", e.Unwrap(), e.Index, e.Max, e.Actual)
}

func (e *MetadataExceedsMaxLengthError) Unwrap() error {
	if e.IsValue {
		return ErrMetadataValueExceedsMaxLength
	}
	return ErrMetadataKeyExceedsMaxLength
}

// DuplicateMetadataKeyError names the scope the key collided in. PieceIndex
// is only meaningful when Piece is set.
type DuplicateMetadataKeyError struct {
	DataSetId  uint64
	Piece      bool
	PieceIndex uint64
	Key        string
}

func (e *DuplicateMetadataKeyError) Error() string {
	if e.Piece {
		return fmt.Sprintf("%s: data set %d piece %d key %q", ErrDuplicateMetadataKey, e.DataSetId, e.PieceIndex, e.Key)
	}
	return fmt.Sprintf("%s: data set %d key %q", ErrDuplicateMetadataKey, e.DataSetId, e.Key)
}

func (e *DuplicateMetadataKeyError) Unwrap() error { return ErrDuplicateMetadataKey }

type OldPayeeMismatchError struct {
	DataSetId uint64
	Expected  common.Address
	Provided  common.Address
}

func (e *OldPayeeMismatchError) Error() string {
	return fmt.Sprintf("%s: data set %d has payee %s, got %s", ErrOldPayeeMismatch, e.DataSetId, e.Expected.Hex(), e.Provided.Hex())
}

func (e *OldPayeeMismatchError) Unwrap() error { return ErrOldPayeeMismatch }

type AlreadyTerminatedError struct {
	DataSetId uint64
}

func (e *AlreadyTerminatedError) Error() string {
	return fmt.Sprintf("%s: data set %d", ErrAlreadyTerminated, e.DataSetId)
}

func (e *AlreadyTerminatedError) Unwrap() error { return ErrAlreadyTerminated }

type BeyondEndEpochError struct {
	DataSetId    uint64
	EndEpoch     uint64
	CurrentEpoch uint64
}

func (e *BeyondEndEpochError) Error() string {
	return fmt.Sprintf("%s: data set %d ended at %d, current epoch %d", ErrBeyondEndEpoch, e.DataSetId, e.EndEpoch, e.CurrentEpoch)
}

func (e *BeyondEndEpochError) Unwrap() error { return ErrBeyondEndEpoch }

type InvalidChallengeEpochError struct {
	DataSetId  uint64
	MinAllowed uint64
	MaxAllowed uint64
	Actual     uint64
}

func (e *InvalidChallengeEpochError) Error() string {
	return fmt.Sprintf("%s: data set %d window [%d, %d], got %d", ErrInvalidChallengeEpoch, e.DataSetId, e.MinAllowed, e.MaxAllowed, e.Actual)
}

func (e *InvalidChallengeEpochError) Unwrap() error { return ErrInvalidChallengeEpoch }

type NextProvingPeriodAlreadyCalledError struct {
	DataSetId    uint64
	PeriodStart  uint64
	CurrentEpoch uint64
}

func (e *NextProvingPeriodAlreadyCalledError) Error() string {
	return fmt.Sprintf("%s: data set %d period opens after %d, current epoch %d", ErrNextProvingPeriodAlreadyCalled, e.DataSetId, e.PeriodStart, e.CurrentEpoch)
}

func (e *NextProvingPeriodAlreadyCalledError) Unwrap() error { return ErrNextProvingPeriodAlreadyCalled }

type InvalidChallengeCountError struct {
	DataSetId uint64
	Expected  uint64
	Actual    uint64
}

func (e *InvalidChallengeCountError) Error() string {
	return fmt.Sprintf("%s: data set %d expected %d, got %d", ErrInvalidChallengeCount, e.DataSetId, e.Expected, e.Actual)
}

func (e *InvalidChallengeCountError) Unwrap() error { return ErrInvalidChallengeCount }

type ProvingPeriodPassedError struct {
	DataSetId    uint64
	Deadline     uint64
	CurrentEpoch uint64
}

func (e *ProvingPeriodPassedError) Error() string {
	return fmt.Sprintf("%s: data set %d deadline %d, current epoch %d", ErrProvingPeriodPassed, e.DataSetId, e.Deadline, e.CurrentEpoch)
}

func (e *ProvingPeriodPassedError) Unwrap() error { return ErrProvingPeriodPassed }

type ChallengeWindowTooEarlyError struct {
	DataSetId    uint64
	WindowStart  uint64
	CurrentEpoch uint64
}

func (e *ChallengeWindowTooEarlyError) Error() string {
	return fmt.Sprintf("%s: data set %d window opens at %d, current epoch %d", ErrChallengeWindowTooEarly, e.DataSetId, e.WindowStart, e.CurrentEpoch)
}

func (e *ChallengeWindowTooEarlyError) Unwrap() error { return ErrChallengeWindowTooEarly }
