package keeper_test

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func TestDataSetCreatedWithoutCDN(t *testing.T) {
	f := initFixture(t)

	require.NoError(t, f.createDataSet(t, 1, operatorA, []string{"label"}, []string{"photos"}))

	info, err := f.querier.DataSet(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, f.payer, info.Payer)
	require.Equal(t, operatorA, info.Payee)
	require.NotZero(t, info.PdpRailId)
	require.Zero(t, info.CacheMissRailId)
	require.Zero(t, info.CdnRailId)
	require.False(t, info.WithCDN())

	rail := f.ledger.Rails[info.PdpRailId]
	require.Equal(t, f.payer, rail.From)
	require.Equal(t, operatorA, rail.To)
	require.Equal(t, serviceAddr, rail.Validator)
	require.Equal(t, tokenAddr, rail.Token)
	require.Equal(t, uint64(testPeriod*testNotice), f.ledger.Lockups[info.PdpRailId])

	res, err := f.querier.DataSetMetadata(f.ctx, 1, "label")
	require.NoError(t, err)
	require.Equal(t, types.MetadataLookup{Exists: true, Value: "photos"}, res)
}

func TestDataSetCreatedWithCDN(t *testing.T) {
	f := initFixture(t)

	require.NoError(t, f.createDataSet(t, 1, operatorA, []string{"withCDN"}, []string{""}))

	info, err := f.querier.DataSet(f.ctx, 1)
	require.NoError(t, err)
	require.NotZero(t, info.PdpRailId)
	require.NotZero(t, info.CacheMissRailId)
	require.NotZero(t, info.CdnRailId)
	require.NoError(t, info.Validate())
	require.Equal(t, operatorA, f.ledger.Rails[info.CacheMissRailId].To)
	require.Equal(t, cdnBeneficiary, f.ledger.Rails[info.CdnRailId].To)
	for _, railId := range info.RailIds() {
		require.Equal(t, uint64(testPeriod*testNotice), f.ledger.Lockups[railId])
	}

	ev, ok := findEvent(f.ctx, types.TypeEvtDataSetCreated)
	require.True(t, ok)
	require.Equal(t, "1", ev[types.AttributeKeyDataSetID])
	require.Equal(t, "0", ev[types.AttributeKeyClientDataSetID])
	require.Equal(t, fmt.Sprintf("%d", info.PdpRailId), ev[types.AttributeKeyPdpRailID])
	require.Equal(t, fmt.Sprintf("%d", info.CacheMissRailId), ev[types.AttributeKeyCacheMissRailID])
	require.Equal(t, fmt.Sprintf("%d", info.CdnRailId), ev[types.AttributeKeyCdnRailID])
	require.Equal(t, f.payer.Hex(), ev[types.AttributeKeyPayer])
	require.Equal(t, operatorA.Hex(), ev[types.AttributeKeyPayee])
	require.Equal(t, "true", ev[types.AttributeKeyWithCDN])
}

func TestDataSetCreatedWithCDNRequiresBeneficiary(t *testing.T) {
	params := testParams()
	params.CdnBeneficiary = common.Address{}
	f := initFixtureWithParams(t, params)

	err := f.createDataSet(t, 1, operatorA, []string{"withCDN"}, []string{""})
	require.ErrorIs(t, err, types.ErrZeroAddress)
	require.Empty(t, f.ledger.Rails)
	require.Empty(t, f.clientDataSets(t, f.payer))

	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))
}

func TestClientDataSetSequence(t *testing.T) {
	f := initFixture(t)

	for id := uint64(10); id < 13; id++ {
		require.NoError(t, f.createDataSet(t, id, operatorA, nil, nil))
	}

	sets := f.clientDataSets(t, f.payer)
	require.Len(t, sets, 3)
	for i, info := range sets {
		require.Equal(t, uint64(i), info.ClientDataSetId)
		require.Equal(t, uint64(10+i), info.Id)
	}

	other, err := gethCrypto.GenerateKey()
	require.NoError(t, err)
	require.Empty(t, f.clientDataSets(t, gethCrypto.PubkeyToAddress(other.PublicKey)))
}

func TestDataSetCreatedRejectsReplayedSequence(t *testing.T) {
	f := initFixture(t)

	extra := f.createExtra(t, f.payerKey, 0, operatorA, nil, nil)
	require.NoError(t, f.keeper.DataSetCreated(f.ctx, verifierAddr, 1, operatorA, extra))

	// The same signature is bound to client data set id 0.
	err := f.keeper.DataSetCreated(f.ctx, verifierAddr, 2, operatorA, extra)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestDataSetCreatedAuthentication(t *testing.T) {
	f := initFixture(t)

	other, err := gethCrypto.GenerateKey()
	require.NoError(t, err)
	sig := f.sign(t, other, types.HashCreateDataSet(types.CreateDataSetIntent{Payee: operatorA}))
	extra, err := types.DataSetCreatedExtra{Payer: f.payer, Signature: sig}.Encode()
	require.NoError(t, err)

	err = f.keeper.DataSetCreated(f.ctx, verifierAddr, 1, operatorA, extra)
	var invalid *types.InvalidSignatureError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, f.payer, invalid.Expected)
	require.Equal(t, gethCrypto.PubkeyToAddress(other.PublicKey), invalid.Recovered)

	short, err := types.DataSetCreatedExtra{Payer: f.payer, Signature: sig[:64]}.Encode()
	require.NoError(t, err)
	err = f.keeper.DataSetCreated(f.ctx, verifierAddr, 1, operatorA, short)
	var lengthErr *types.SignatureLengthError
	require.ErrorAs(t, err, &lengthErr)

	err = f.keeper.DataSetCreated(f.ctx, verifierAddr, 1, operatorA, []byte{0x01})
	require.ErrorIs(t, err, types.ErrInvalidExtraData)

	err = f.keeper.DataSetCreated(f.ctx, operatorA, 1, operatorA, f.createExtra(t, f.payerKey, 0, operatorA, nil, nil))
	require.ErrorIs(t, err, types.ErrOnlyVerifier)

	_, err = f.querier.DataSet(f.ctx, 1)
	require.Error(t, err)
	require.Empty(t, f.ledger.Rails)
}

func TestDataSetCreatedIsAllOrNothing(t *testing.T) {
	f := initFixture(t)
	f.ledger.FailCreateAfter = 1

	err := f.createDataSet(t, 1, operatorA, []string{"withCDN", "label"}, []string{"", "x"})
	require.ErrorIs(t, err, errInsufficientAllowance)

	_, err = f.keeper.GetDataSet(f.ctx, 1)
	require.ErrorIs(t, err, types.ErrDataSetNotFound)
	res, err := f.keeper.GetDataSetMetadata(f.ctx, 1, "label")
	require.NoError(t, err)
	require.False(t, res.Exists)
	require.Empty(t, f.clientDataSets(t, f.payer))
	has, err := f.keeper.RailToDataSet.Has(f.ctx, 1)
	require.NoError(t, err)
	require.False(t, has)
}

func TestDataSetCreatedDuplicateId(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))
	require.ErrorIs(t, f.createDataSet(t, 1, operatorA, nil, nil), types.ErrDataSetExists)
}

func TestDataSetCreatedMetadataValidation(t *testing.T) {
	f := initFixture(t)

	err := f.createDataSet(t, 1, operatorA, []string{"a", "a"}, []string{"1", "2"})
	var dup *types.DuplicateMetadataKeyError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, uint64(1), dup.DataSetId)
	require.Equal(t, "a", dup.Key)
	require.False(t, dup.Piece)

	keys := make([]string, types.MaxKeysPerDataSet+1)
	values := make([]string, len(keys))
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	err = f.createDataSet(t, 1, operatorA, keys, values)
	var tooMany *types.TooManyMetadataKeysError
	require.ErrorAs(t, err, &tooMany)
	require.Equal(t, types.MaxKeysPerDataSet, tooMany.Max)
}

func TestDataSetMetadataRoundTrip(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, []string{"z", "a"}, []string{"last", "first"}))

	require.NoError(t, f.keeper.SetDataSetMetadata(f.ctx, 1, []string{"m"}, []string{"mid"}))

	all, err := f.querier.AllDataSetMetadata(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []types.MetadataEntry{
		{Key: "z", Value: "last"},
		{Key: "a", Value: "first"},
		{Key: "m", Value: "mid"},
	}, all)

	missing, err := f.querier.DataSetMetadata(f.ctx, 1, "nope")
	require.NoError(t, err)
	require.False(t, missing.Exists)

	// Existing keys are write-once regardless of value.
	err = f.keeper.SetDataSetMetadata(f.ctx, 1, []string{"n", "a"}, []string{"new", "first"})
	require.ErrorIs(t, err, types.ErrDuplicateMetadataKey)
	res, err := f.querier.DataSetMetadata(f.ctx, 1, "n")
	require.NoError(t, err)
	require.False(t, res.Exists)

	err = f.keeper.SetDataSetMetadata(f.ctx, 1, []string{"x"}, nil)
	require.ErrorIs(t, err, types.ErrMetadataArrayLengthMismatch)

	_, err = f.querier.AllDataSetMetadata(f.ctx, 99)
	require.Error(t, err)
}

func TestDataSetCreatedOperatorPolicy(t *testing.T) {
	params := testParams()
	params.RequireApprovedOperator = true
	f := initFixtureWithParams(t, params)

	require.ErrorIs(t, f.createDataSet(t, 1, operatorA, nil, nil), types.ErrOperatorNotApproved)

	f.directory.Approved[operatorA] = true
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))
}

func TestStorageProviderChanged(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, []string{"withCDN"}, []string{""}))
	before, err := f.keeper.GetDataSet(f.ctx, 1)
	require.NoError(t, err)
	f.setEpoch(5)

	require.NoError(t, f.keeper.StorageProviderChanged(f.ctx, verifierAddr, 1, operatorA, operatorB, nil))

	parties, err := f.querier.DataSetParties(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, operatorB, parties.Payee)
	require.Equal(t, f.payer, parties.Payer)

	after, err := f.keeper.GetDataSet(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, before.PdpRailId, after.PdpRailId)
	require.Equal(t, before.CacheMissRailId, after.CacheMissRailId)
	require.Equal(t, before.CdnRailId, after.CdnRailId)

	ev, ok := findEvent(f.ctx, types.TypeEvtPayeeChanged)
	require.True(t, ok)
	require.Equal(t, "1", ev[types.AttributeKeyDataSetID])
	require.Equal(t, operatorA.Hex(), ev[types.AttributeKeyOldPayee])
	require.Equal(t, operatorB.Hex(), ev[types.AttributeKeyNewPayee])
}

func TestStorageProviderChangedErrors(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))

	err := f.keeper.StorageProviderChanged(f.ctx, operatorA, 1, operatorA, operatorB, nil)
	require.ErrorIs(t, err, types.ErrOnlyVerifier)

	err = f.keeper.StorageProviderChanged(f.ctx, verifierAddr, 1, operatorB, operatorA, nil)
	var mismatch *types.OldPayeeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, uint64(1), mismatch.DataSetId)
	require.Equal(t, operatorA, mismatch.Expected)
	require.Equal(t, operatorB, mismatch.Provided)

	err = f.keeper.StorageProviderChanged(f.ctx, verifierAddr, 1, operatorA, common.Address{}, nil)
	require.ErrorIs(t, err, types.ErrZeroAddress)

	err = f.keeper.StorageProviderChanged(f.ctx, verifierAddr, 2, operatorA, operatorB, nil)
	require.ErrorIs(t, err, types.ErrDataSetNotFound)
}

func TestPiecesAdded(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))

	pieces := [][]byte{testPiece(t, 1), testPiece(t, 2)}
	keys := [][]string{{"name", "type"}, {}}
	values := [][]string{{"cat.jpg", "image"}, {}}
	extra := f.addPiecesExtra(t, 1, 4, pieces, keys, values)
	require.NoError(t, f.keeper.PiecesAdded(f.ctx, verifierAddr, 1, 4, pieces, extra))

	all, err := f.querier.AllPieceMetadata(f.ctx, 1, 4)
	require.NoError(t, err)
	require.Equal(t, []types.MetadataEntry{{Key: "name", Value: "cat.jpg"}, {Key: "type", Value: "image"}}, all)
	empty, err := f.querier.AllPieceMetadata(f.ctx, 1, 5)
	require.NoError(t, err)
	require.Empty(t, empty)
	res, err := f.querier.PieceMetadata(f.ctx, 1, 4, "type")
	require.NoError(t, err)
	require.Equal(t, "image", res.Value)

	// The nonce cannot be replayed.
	err = f.keeper.PiecesAdded(f.ctx, verifierAddr, 1, 4, pieces, extra)
	require.ErrorIs(t, err, types.ErrNonceAlreadyUsed)
}

func TestPiecesAddedValidation(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))
	piece := [][]byte{testPiece(t, 1)}

	// Per-piece keys must match the piece count.
	extra := f.addPiecesExtra(t, 1, 0, piece, [][]string{{}}, [][]string{{}})
	err := f.keeper.PiecesAdded(f.ctx, verifierAddr, 1, 0, [][]byte{testPiece(t, 1), testPiece(t, 2)}, extra)
	require.ErrorIs(t, err, types.ErrMetadataArrayLengthMismatch)
	var count *types.PieceMetadataCountMismatchError
	require.ErrorAs(t, err, &count)
	require.Equal(t, types.PieceMetadataCountMismatchError{Pieces: 2, Keys: 1, Values: 1}, *count)

	bad := [][]byte{{0xff, 0xff}}
	extra = f.addPiecesExtra(t, 1, 0, bad, [][]string{{}}, [][]string{{}})
	err = f.keeper.PiecesAdded(f.ctx, verifierAddr, 1, 0, bad, extra)
	require.ErrorIs(t, err, types.ErrInvalidPieceCid)

	extra = f.addPiecesExtra(t, 1, 0, piece, [][]string{{"a", "a"}}, [][]string{{"1", "2"}})
	err = f.keeper.PiecesAdded(f.ctx, verifierAddr, 1, 0, piece, extra)
	var dup *types.DuplicateMetadataKeyError
	require.ErrorAs(t, err, &dup)
	require.True(t, dup.Piece)
	require.Equal(t, uint64(0), dup.PieceIndex)

	// Signed for index 0, submitted at index 1.
	extra = f.addPiecesExtra(t, 1, 0, piece, [][]string{{}}, [][]string{{}})
	err = f.keeper.PiecesAdded(f.ctx, verifierAddr, 1, 1, piece, extra)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestPiecesScheduledRemove(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))

	ids := []uint64{3, 1}
	sig := f.sign(t, f.payerKey, types.HashSchedulePieceRemovals(types.SchedulePieceRemovalsIntent{ClientDataSetId: 0, PieceIds: ids}))
	extra, err := types.EncodeSignatureExtra(sig)
	require.NoError(t, err)

	require.NoError(t, f.keeper.PiecesScheduledRemove(f.ctx, verifierAddr, 1, ids, extra))
	ev, ok := findEvent(f.ctx, types.TypeEvtPiecesScheduledRemove)
	require.True(t, ok)
	require.Equal(t, "3,1", ev[types.AttributeKeyPieceIDs])

	err = f.keeper.PiecesScheduledRemove(f.ctx, verifierAddr, 1, []uint64{1, 3}, extra)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestDataSetDeleted(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 1+testPeriod-1, 64, nil))

	sig := f.sign(t, f.payerKey, types.HashDeleteDataSet(types.DeleteDataSetIntent{ClientDataSetId: 0}))
	extra, err := types.EncodeSignatureExtra(sig)
	require.NoError(t, err)

	wrong := f.sign(t, f.payerKey, types.HashDeleteDataSet(types.DeleteDataSetIntent{ClientDataSetId: 1}))
	wrongExtra, err := types.EncodeSignatureExtra(wrong)
	require.NoError(t, err)
	require.ErrorIs(t, f.keeper.DataSetDeleted(f.ctx, verifierAddr, 1, 64, wrongExtra), types.ErrInvalidSignature)

	require.NoError(t, f.keeper.DataSetDeleted(f.ctx, verifierAddr, 1, 64, extra))

	info, err := f.keeper.GetDataSet(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, f.epoch()+testPeriod*testNotice, info.PaymentEndEpoch)
	require.True(t, f.ledger.Terminated[info.PdpRailId])

	state, err := f.querier.ProvingState(f.ctx, 1)
	require.NoError(t, err)
	require.False(t, state.Active())

	// Cleanup still works once the agreement has ended.
	f.setEpoch(info.PaymentEndEpoch + 1)
	require.NoError(t, f.keeper.DataSetDeleted(f.ctx, verifierAddr, 1, 0, extra))
}
