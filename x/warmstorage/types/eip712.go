package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants for EIP-712
const (
	EIP712DomainName    = ServiceName
	EIP712DomainVersion = ServiceVersion
)

var (
	// Type Hashes
	// Referenced struct types are appended to the primary type in name order.

	// keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")
	EIP712DomainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	MetadataEntryTypeHash = crypto.Keccak256([]byte("MetadataEntry(string key,string value)"))

	CreateDataSetTypeHash = crypto.Keccak256([]byte(
		"CreateDataSet(uint256 clientDataSetId,address payee,MetadataEntry[] metadata)" +
			"MetadataEntry(string key,string value)"))

	CidTypeHash = crypto.Keccak256([]byte("Cid(bytes data)"))

	PieceMetadataTypeHash = crypto.Keccak256([]byte(
		"PieceMetadata(uint256 pieceIndex,MetadataEntry[] metadata)" +
			"MetadataEntry(string key,string value)"))

	AddPiecesTypeHash = crypto.Keccak256([]byte(
		"AddPieces(uint256 clientDataSetId,uint256 nonce,Cid[] pieceData,PieceMetadata[] pieceMetadata)" +
			"Cid(bytes data)" +
			"MetadataEntry(string key,string value)" +
			"PieceMetadata(uint256 pieceIndex,MetadataEntry[] metadata)"))

	SchedulePieceRemovalsTypeHash = crypto.Keccak256([]byte("SchedulePieceRemovals(uint256 clientDataSetId,uint256[] pieceIds)"))

	DeleteDataSetTypeHash = crypto.Keccak256([]byte("DeleteDataSet(uint256 clientDataSetId)"))

	// EmptyListHash is the encoding of any empty array member.
	EmptyListHash = common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
)

// CreateDataSetIntent is what a payer signs to open a data set with a payee.
type CreateDataSetIntent struct {
	ClientDataSetId uint64
	Payee           common.Address
	Metadata        []MetadataEntry
}

// AddPiecesIntent is what a payer signs to add pieces. Piece i is stored at
// index FirstAdded+i and PieceMetadata[i] belongs to it.
type AddPiecesIntent struct {
	ClientDataSetId uint64
	Nonce           *big.Int
	FirstAdded      uint64
	Pieces          [][]byte
	PieceMetadata   [][]MetadataEntry
}

type SchedulePieceRemovalsIntent struct {
	ClientDataSetId uint64
	PieceIds        []uint64
}

type DeleteDataSetIntent struct {
	ClientDataSetId uint64
}

// HashDomainSeparator computes the domain separator for a chain and the
// controller address.
// Fields: name, version, chainId, verifyingContract
func HashDomainSeparator(chainID *big.Int, verifyingContract common.Address) common.Hash {
	return crypto.Keccak256Hash(
		EIP712DomainTypeHash,
		keccak256String(EIP712DomainName),
		keccak256String(EIP712DomainVersion),
		math.PaddedBigBytes(chainID, 32),
		pad32(verifyingContract.Bytes()),
	)
}

// HashMetadataEntry computes the struct hash of one metadata entry.
func HashMetadataEntry(entry MetadataEntry) common.Hash {
	return crypto.Keccak256Hash(
		MetadataEntryTypeHash,
		keccak256String(entry.Key),
		keccak256String(entry.Value),
	)
}

// HashMetadataEntries hashes an ordered metadata list.
func HashMetadataEntries(entries []MetadataEntry) common.Hash {
	hashes := make([]common.Hash, len(entries))
	for i, e := range entries {
		hashes[i] = HashMetadataEntry(e)
	}
	return hashList(hashes)
}

// HashCreateDataSet computes the struct hash for a CreateDataSet intent.
// Fields: clientDataSetId, payee, metadata
func HashCreateDataSet(intent CreateDataSetIntent) common.Hash {
	return crypto.Keccak256Hash(
		CreateDataSetTypeHash,
		uint256Bytes(intent.ClientDataSetId),
		pad32(intent.Payee.Bytes()),
		HashMetadataEntries(intent.Metadata).Bytes(),
	)
}

// HashCid computes the struct hash of a piece content identifier.
func HashCid(data []byte) common.Hash {
	return crypto.Keccak256Hash(CidTypeHash, crypto.Keccak256(data))
}

// HashPieceMetadata computes the struct hash of one piece's metadata.
func HashPieceMetadata(pieceIndex uint64, entries []MetadataEntry) common.Hash {
	return crypto.Keccak256Hash(
		PieceMetadataTypeHash,
		uint256Bytes(pieceIndex),
		HashMetadataEntries(entries).Bytes(),
	)
}

// HashAddPieces computes the struct hash for an AddPieces intent.
// Fields: clientDataSetId, nonce, pieceData, pieceMetadata
func HashAddPieces(intent AddPiecesIntent) common.Hash {
	cids := make([]common.Hash, len(intent.Pieces))
	for i, p := range intent.Pieces {
		cids[i] = HashCid(p)
	}
	metas := make([]common.Hash, len(intent.PieceMetadata))
	for i, entries := range intent.PieceMetadata {
		metas[i] = HashPieceMetadata(intent.FirstAdded+uint64(i), entries)
	}
	nonce := intent.Nonce
	if nonce == nil {
		nonce = new(big.Int)
	}
	return crypto.Keccak256Hash(
		AddPiecesTypeHash,
		uint256Bytes(intent.ClientDataSetId),
		math.PaddedBigBytes(nonce, 32),
		hashList(cids).Bytes(),
		hashList(metas).Bytes(),
	)
}

// HashSchedulePieceRemovals computes the struct hash for a removal intent.
// Fields: clientDataSetId, pieceIds
func HashSchedulePieceRemovals(intent SchedulePieceRemovalsIntent) common.Hash {
	var ids common.Hash
	if len(intent.PieceIds) == 0 {
		ids = EmptyListHash
	} else {
		buf := make([]byte, 0, 32*len(intent.PieceIds))
		for _, id := range intent.PieceIds {
			buf = append(buf, uint256Bytes(id)...)
		}
		ids = crypto.Keccak256Hash(buf)
	}
	return crypto.Keccak256Hash(
		SchedulePieceRemovalsTypeHash,
		uint256Bytes(intent.ClientDataSetId),
		ids.Bytes(),
	)
}

// HashDeleteDataSet computes the struct hash for a DeleteDataSet intent.
func HashDeleteDataSet(intent DeleteDataSetIntent) common.Hash {
	return crypto.Keccak256Hash(
		DeleteDataSetTypeHash,
		uint256Bytes(intent.ClientDataSetId),
	)
}

// ComputeEIP712Digest combines the domain separator and struct hash.
// digest = keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(message))
func ComputeEIP712Digest(domainSep common.Hash, structHash common.Hash) []byte {
	return crypto.Keccak256(
		[]byte("\x19\x01"),
		domainSep.Bytes(),
		structHash.Bytes(),
	)
}

// Helpers

func hashList(hashes []common.Hash) common.Hash {
	if len(hashes) == 0 {
		return EmptyListHash
	}
	buf := make([]byte, 0, 32*len(hashes))
	for _, h := range hashes {
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

func keccak256String(s string) []byte {
	return crypto.Keccak256([]byte(s))
}

func uint256Bytes(v uint64) []byte {
	return math.PaddedBigBytes(new(big.Int).SetUint64(v), 32)
}

func pad32(b []byte) []byte {
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}
