package types_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func TestDataSetCreatedExtra(t *testing.T) {
	in := types.DataSetCreatedExtra{
		Payer:          common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		MetadataKeys:   []string{"withCDN", "label"},
		MetadataValues: []string{"", "photos"},
		Signature:      make([]byte, 65),
	}
	bz, err := in.Encode()
	require.NoError(t, err)

	out, err := types.DecodeDataSetCreatedExtra(bz)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = types.DecodeDataSetCreatedExtra(bz[:40])
	require.ErrorIs(t, err, types.ErrInvalidExtraData)
}

func TestPiecesAddedExtra(t *testing.T) {
	in := types.PiecesAddedExtra{
		Nonce:          big.NewInt(7),
		MetadataKeys:   [][]string{{"a"}, {}},
		MetadataValues: [][]string{{"1"}, {}},
		Signature:      []byte{1, 2, 3},
	}
	bz, err := in.Encode()
	require.NoError(t, err)

	out, err := types.DecodePiecesAddedExtra(bz)
	require.NoError(t, err)
	require.Equal(t, 0, in.Nonce.Cmp(out.Nonce))
	require.Equal(t, in.MetadataKeys, out.MetadataKeys)
	require.Equal(t, in.MetadataValues, out.MetadataValues)
	require.Equal(t, in.Signature, out.Signature)
}

func TestSignatureExtra(t *testing.T) {
	bz, err := types.EncodeSignatureExtra([]byte{9, 9})
	require.NoError(t, err)
	sig, err := types.DecodeSignatureExtra(bz)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9}, sig)

	_, err = types.DecodeSignatureExtra(nil)
	require.ErrorIs(t, err, types.ErrInvalidExtraData)
}
