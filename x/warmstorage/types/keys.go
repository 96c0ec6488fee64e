package types

import "cosmossdk.io/collections"

const (
	// ModuleName defines the module name
	ModuleName = "warmstorage"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// ServiceName is the protocol name bound into every EIP-712 domain.
	ServiceName = "FilecoinWarmStorageService"

	// ServiceVersion is the EIP-712 domain version and the version string
	// recorded by the latest migration.
	ServiceVersion = "1"
)

// ParamsKey is the prefix to retrieve all Params
var ParamsKey = collections.NewPrefix("p_warmstorage")

var (
	VersionKey        = collections.NewPrefix("Version/value/")
	ServiceVersionKey = collections.NewPrefix("ServiceVersion/value/")

	DataSetsKey           = collections.NewPrefix("DataSets/value/")
	ClientDataSetCountKey = collections.NewPrefix("ClientDataSetCount/value/")
	ClientDataSetsKey     = collections.NewPrefix("ClientDataSets/value/")
	RailToDataSetKey      = collections.NewPrefix("RailToDataSet/value/")
	UsedNoncesKey         = collections.NewPrefix("UsedNonces/value/")

	DataSetMetadataKey     = collections.NewPrefix("DataSetMetadata/value/")
	DataSetMetadataKeysKey = collections.NewPrefix("DataSetMetadataKeys/value/")
	PieceMetadataKey       = collections.NewPrefix("PieceMetadata/value/")
	PieceMetadataKeysKey   = collections.NewPrefix("PieceMetadataKeys/value/")

	ProvingStatesKey = collections.NewPrefix("ProvingStates/value/")
	ProvenPeriodsKey = collections.NewPrefix("ProvenPeriods/value/")
)
