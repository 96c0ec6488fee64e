package types_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func TestNewMetadataEntriesLengthMismatch(t *testing.T) {
	_, err := types.NewMetadataEntries([]string{"a", "b"}, []string{"1"})
	var mismatch *types.MetadataArrayLengthMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 2, mismatch.KeysLength)
	require.Equal(t, 1, mismatch.ValuesLength)

	entries, err := types.NewMetadataEntries([]string{"a"}, []string{"1"})
	require.NoError(t, err)
	keys, values := types.SplitMetadataEntries(entries)
	require.Equal(t, []string{"a"}, keys)
	require.Equal(t, []string{"1"}, values)
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name    string
		entries []types.MetadataEntry
		maxKeys int
		check   func(t *testing.T, err error)
	}{
		{
			name:    "ok at limits",
			entries: []types.MetadataEntry{{Key: strings.Repeat("k", 32), Value: strings.Repeat("v", 128)}},
			maxKeys: 1,
			check:   func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name:    "too many keys",
			entries: make([]types.MetadataEntry, 6),
			maxKeys: types.MaxKeysPerPiece,
			check: func(t *testing.T, err error) {
				var tooMany *types.TooManyMetadataKeysError
				require.ErrorAs(t, err, &tooMany)
				require.Equal(t, 5, tooMany.Max)
				require.Equal(t, 6, tooMany.Actual)
			},
		},
		{
			name:    "key too long",
			entries: []types.MetadataEntry{{Key: "ok"}, {Key: strings.Repeat("k", 33)}},
			maxKeys: types.MaxKeysPerDataSet,
			check: func(t *testing.T, err error) {
				var tooLong *types.MetadataExceedsMaxLengthError
				require.ErrorAs(t, err, &tooLong)
				require.False(t, tooLong.IsValue)
				require.Equal(t, 1, tooLong.Index)
				require.Equal(t, 32, tooLong.Max)
				require.Equal(t, 33, tooLong.Actual)
				require.ErrorIs(t, err, types.ErrMetadataKeyExceedsMaxLength)
			},
		},
		{
			name:    "value too long",
			entries: []types.MetadataEntry{{Key: "k", Value: strings.Repeat("v", 129)}},
			maxKeys: types.MaxKeysPerDataSet,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, types.ErrMetadataValueExceedsMaxLength)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, types.ValidateMetadata(tc.entries, tc.maxKeys))
		})
	}
}

func TestDuplicateKey(t *testing.T) {
	_, dup := types.DuplicateKey([]types.MetadataEntry{{Key: "a"}, {Key: "b"}})
	require.False(t, dup)

	key, dup := types.DuplicateKey([]types.MetadataEntry{{Key: "a", Value: "1"}, {Key: "b"}, {Key: "a", Value: "2"}})
	require.True(t, dup)
	require.Equal(t, "a", key)
}
