package types_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func testDomain() types.Domain {
	return types.Domain{
		ChainId:           big.NewInt(314159),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
}

func TestEmptyListHash(t *testing.T) {
	require.Equal(t, gethCrypto.Keccak256Hash(), types.EmptyListHash)
	require.Equal(t, types.EmptyListHash, types.HashMetadataEntries(nil))
}

func TestDomainSeparatorDependsOnChainAndContract(t *testing.T) {
	d := testDomain()
	base := d.Separator()
	require.Equal(t, base, testDomain().Separator())

	other := d
	other.ChainId = big.NewInt(1)
	require.NotEqual(t, base, other.Separator())

	other = d
	other.VerifyingContract = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	require.NotEqual(t, base, other.Separator())
}

func TestCreateDataSetSignatureRoundTrip(t *testing.T) {
	key, err := gethCrypto.GenerateKey()
	require.NoError(t, err)
	payer := gethCrypto.PubkeyToAddress(key.PublicKey)

	d := testDomain()
	intent := types.CreateDataSetIntent{
		ClientDataSetId: 3,
		Payee:           common.HexToAddress("0x00000000000000000000000000000000000000b0"),
		Metadata:        []types.MetadataEntry{{Key: "withCDN", Value: ""}, {Key: "label", Value: "photos"}},
	}
	digest := d.Digest(types.HashCreateDataSet(intent))
	require.Equal(t, digest, d.Digest(types.HashCreateDataSet(intent)))

	sig, err := types.SignDigest(digest, key)
	require.NoError(t, err)
	require.Contains(t, []byte{27, 28}, sig[64])
	require.NoError(t, d.VerifyCreateDataSet(payer, intent, sig))

	// Any field change invalidates the signature.
	tampered := []types.CreateDataSetIntent{
		{ClientDataSetId: 4, Payee: intent.Payee, Metadata: intent.Metadata},
		{ClientDataSetId: 3, Payee: common.HexToAddress("0xb1"), Metadata: intent.Metadata},
		{ClientDataSetId: 3, Payee: intent.Payee, Metadata: intent.Metadata[:1]},
		{ClientDataSetId: 3, Payee: intent.Payee, Metadata: []types.MetadataEntry{{Key: "withCDN", Value: "x"}, {Key: "label", Value: "photos"}}},
	}
	for _, tc := range tampered {
		err := d.VerifyCreateDataSet(payer, tc, sig)
		var invalid *types.InvalidSignatureError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, payer, invalid.Expected)
		require.NotEqual(t, payer, invalid.Recovered)
		require.ErrorIs(t, err, types.ErrInvalidSignature)
	}
}

func TestMetadataOrderChangesDigest(t *testing.T) {
	a := []types.MetadataEntry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	b := []types.MetadataEntry{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}
	require.NotEqual(t, types.HashMetadataEntries(a), types.HashMetadataEntries(b))
}

func TestAddPiecesDigestBindsEveryField(t *testing.T) {
	intent := types.AddPiecesIntent{
		ClientDataSetId: 1,
		Nonce:           big.NewInt(42),
		FirstAdded:      7,
		Pieces:          [][]byte{{0x01, 0x55}, {0x01, 0x56}},
		PieceMetadata:   [][]types.MetadataEntry{{{Key: "k", Value: "v"}}, nil},
	}
	base := types.HashAddPieces(intent)

	mutations := []func(*types.AddPiecesIntent){
		func(i *types.AddPiecesIntent) { i.ClientDataSetId = 2 },
		func(i *types.AddPiecesIntent) { i.Nonce = big.NewInt(43) },
		func(i *types.AddPiecesIntent) { i.FirstAdded = 8 },
		func(i *types.AddPiecesIntent) { i.Pieces = [][]byte{{0x01, 0x55}} },
		func(i *types.AddPiecesIntent) { i.PieceMetadata = [][]types.MetadataEntry{nil, nil} },
	}
	for _, mutate := range mutations {
		changed := intent
		mutate(&changed)
		require.NotEqual(t, base, types.HashAddPieces(changed))
	}

	nilNonce := intent
	nilNonce.Nonce = nil
	zeroNonce := intent
	zeroNonce.Nonce = big.NewInt(0)
	require.Equal(t, types.HashAddPieces(zeroNonce), types.HashAddPieces(nilNonce))
}

func TestRemovalAndDeleteDigests(t *testing.T) {
	r1 := types.HashSchedulePieceRemovals(types.SchedulePieceRemovalsIntent{ClientDataSetId: 1, PieceIds: []uint64{1, 2}})
	r2 := types.HashSchedulePieceRemovals(types.SchedulePieceRemovalsIntent{ClientDataSetId: 1, PieceIds: []uint64{2, 1}})
	require.NotEqual(t, r1, r2)

	d1 := types.HashDeleteDataSet(types.DeleteDataSetIntent{ClientDataSetId: 1})
	d2 := types.HashDeleteDataSet(types.DeleteDataSetIntent{ClientDataSetId: 2})
	require.NotEqual(t, d1, d2)
}

func TestRecoverSignerRejectsMalformedSignatures(t *testing.T) {
	key, err := gethCrypto.GenerateKey()
	require.NoError(t, err)
	payer := gethCrypto.PubkeyToAddress(key.PublicKey)
	digest := testDomain().Digest(types.HashDeleteDataSet(types.DeleteDataSetIntent{ClientDataSetId: 9}))

	sig, err := types.SignDigest(digest, key)
	require.NoError(t, err)

	_, err = types.RecoverSigner(digest, sig[:64])
	var lengthErr *types.SignatureLengthError
	require.ErrorAs(t, err, &lengthErr)
	require.Equal(t, 65, lengthErr.Expected)
	require.Equal(t, 64, lengthErr.Actual)

	bad := append([]byte(nil), sig...)
	bad[64] = 29
	_, err = types.RecoverSigner(digest, bad)
	var vErr *types.UnsupportedSignatureVError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, byte(29), vErr.V)
	require.True(t, errors.Is(err, types.ErrUnsupportedSignatureV))

	// Raw 0/1 recovery ids are normalised.
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	signer, err := types.RecoverSigner(digest, raw)
	require.NoError(t, err)
	require.Equal(t, payer, signer)
}
