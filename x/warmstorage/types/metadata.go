package types

// Metadata ceilings.
const (
	MaxKeysPerDataSet = 10
	MaxKeysPerPiece   = 5
	MaxKeyLength      = 32
	MaxValueLength    = 128
)

// NewMetadataEntries pairs keys with values.
func NewMetadataEntries(keys, values []string) ([]MetadataEntry, error) {
	if len(keys) != len(values) {
		return nil, &MetadataArrayLengthMismatchError{KeysLength: len(keys), ValuesLength: len(values)}
	}
	entries := make([]MetadataEntry, len(keys))
	for i := range keys {
		entries[i] = MetadataEntry{Key: keys[i], Value: values[i]}
	}
	return entries, nil
}

// SplitMetadataEntries is the inverse of NewMetadataEntries.
func SplitMetadataEntries(entries []MetadataEntry) (keys, values []string) {
	keys = make([]string, len(entries))
	values = make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
		values[i] = e.Value
	}
	return keys, values
}

// ValidateMetadata checks the batch against the key ceiling and the key and
// value length limits. It does not look for duplicates; see DuplicateKey.
func ValidateMetadata(entries []MetadataEntry, maxKeys int) error {
	if len(entries) > maxKeys {
		return &TooManyMetadataKeysError{Max: maxKeys, Actual: len(entries)}
	}
	for i, e := range entries {
		if len(e.Key) > MaxKeyLength {
			return &MetadataExceedsMaxLengthError{Index: i, Max: MaxKeyLength, Actual: len(e.Key)}
		}
		if len(e.Value) > MaxValueLength {
			return &MetadataExceedsMaxLengthError{IsValue: true, Index: i, Max: MaxValueLength, Actual: len(e.Value)}
		}
	}
	return nil
}

// DuplicateKey returns the first key that appears twice in entries.
func DuplicateKey(entries []MetadataEntry) (string, bool) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Key]; ok {
			return e.Key, true
		}
		seen[e.Key] = struct{}{}
	}
	return "", false
}

// HasMetadataKey reports whether key is present in entries.
func HasMetadataKey(entries []MetadataEntry, key string) bool {
	for _, e := range entries {
		if e.Key == key {
			return true
		}
	}
	return false
}
