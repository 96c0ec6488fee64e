package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// extraData layouts, ABI encoded:
//
//	dataSetCreated:        (address payer, string[] keys, string[] values, bytes signature)
//	piecesAdded:           (uint256 nonce, string[][] keys, string[][] values, bytes signature)
//	piecesScheduledRemove: (bytes signature)
//	dataSetDeleted:        (bytes signature)
var (
	dataSetCreatedExtraArgs = abi.Arguments{
		{Name: "payer", Type: mustNewType("address")},
		{Name: "metadataKeys", Type: mustNewType("string[]")},
		{Name: "metadataValues", Type: mustNewType("string[]")},
		{Name: "signature", Type: mustNewType("bytes")},
	}
	piecesAddedExtraArgs = abi.Arguments{
		{Name: "nonce", Type: mustNewType("uint256")},
		{Name: "metadataKeys", Type: mustNewType("string[][]")},
		{Name: "metadataValues", Type: mustNewType("string[][]")},
		{Name: "signature", Type: mustNewType("bytes")},
	}
	signatureExtraArgs = abi.Arguments{
		{Name: "signature", Type: mustNewType("bytes")},
	}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

type DataSetCreatedExtra struct {
	Payer          common.Address
	MetadataKeys   []string
	MetadataValues []string
	Signature      []byte
}

func (e DataSetCreatedExtra) Encode() ([]byte, error) {
	return dataSetCreatedExtraArgs.Pack(e.Payer, nonNilStrings(e.MetadataKeys), nonNilStrings(e.MetadataValues), nonNilBytes(e.Signature))
}

func DecodeDataSetCreatedExtra(data []byte) (DataSetCreatedExtra, error) {
	vals, err := dataSetCreatedExtraArgs.Unpack(data)
	if err != nil {
		return DataSetCreatedExtra{}, ErrInvalidExtraData.Wrapf("data set created: %s", err)
	}
	var out DataSetCreatedExtra
	var ok [4]bool
	out.Payer, ok[0] = vals[0].(common.Address)
	out.MetadataKeys, ok[1] = vals[1].([]string)
	out.MetadataValues, ok[2] = vals[2].([]string)
	out.Signature, ok[3] = vals[3].([]byte)
	if err := checkDecoded("data set created", ok[:]); err != nil {
		return DataSetCreatedExtra{}, err
	}
	return out, nil
}

type PiecesAddedExtra struct {
	Nonce          *big.Int
	MetadataKeys   [][]string
	MetadataValues [][]string
	Signature      []byte
}

func (e PiecesAddedExtra) Encode() ([]byte, error) {
	nonce := e.Nonce
	if nonce == nil {
		nonce = new(big.Int)
	}
	keys := make([][]string, len(e.MetadataKeys))
	for i := range e.MetadataKeys {
		keys[i] = nonNilStrings(e.MetadataKeys[i])
	}
	values := make([][]string, len(e.MetadataValues))
	for i := range e.MetadataValues {
		values[i] = nonNilStrings(e.MetadataValues[i])
	}
	return piecesAddedExtraArgs.Pack(nonce, keys, values, nonNilBytes(e.Signature))
}

func DecodePiecesAddedExtra(data []byte) (PiecesAddedExtra, error) {
	vals, err := piecesAddedExtraArgs.Unpack(data)
	if err != nil {
		return PiecesAddedExtra{}, ErrInvalidExtraData.Wrapf("pieces added: %s", err)
	}
	var out PiecesAddedExtra
	var ok [4]bool
	out.Nonce, ok[0] = vals[0].(*big.Int)
	out.MetadataKeys, ok[1] = vals[1].([][]string)
	out.MetadataValues, ok[2] = vals[2].([][]string)
	out.Signature, ok[3] = vals[3].([]byte)
	if err := checkDecoded("pieces added", ok[:]); err != nil {
		return PiecesAddedExtra{}, err
	}
	return out, nil
}

// EncodeSignatureExtra packs the payload used by removals and deletions.
func EncodeSignatureExtra(signature []byte) ([]byte, error) {
	return signatureExtraArgs.Pack(nonNilBytes(signature))
}

func DecodeSignatureExtra(data []byte) ([]byte, error) {
	vals, err := signatureExtraArgs.Unpack(data)
	if err != nil {
		return nil, ErrInvalidExtraData.Wrapf("signature: %s", err)
	}
	sig, ok := vals[0].([]byte)
	if !ok {
		return nil, ErrInvalidExtraData.Wrapf("signature: unexpected type %T", vals[0])
	}
	return sig, nil
}

func checkDecoded(what string, ok []bool) error {
	for i, v := range ok {
		if !v {
			return ErrInvalidExtraData.Wrapf("%s: field %d has unexpected type", what, i)
		}
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
