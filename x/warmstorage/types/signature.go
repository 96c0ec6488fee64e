package types

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an r‖s‖v signature.
const SignatureLength = 65

// Domain is the EIP-712 domain every payer intent is signed under.
type Domain struct {
	ChainId           *big.Int
	VerifyingContract common.Address
}

// DomainFromParams returns the domain configured in params.
func DomainFromParams(p Params) Domain {
	return Domain{
		ChainId:           new(big.Int).SetUint64(p.EvmChainId),
		VerifyingContract: p.ServiceAddress,
	}
}

func (d Domain) Separator() common.Hash {
	return HashDomainSeparator(d.ChainId, d.VerifyingContract)
}

// Digest returns the 32 byte message a wallet signs for structHash.
func (d Domain) Digest(structHash common.Hash) []byte {
	return ComputeEIP712Digest(d.Separator(), structHash)
}

func (d Domain) VerifyCreateDataSet(payer common.Address, intent CreateDataSetIntent, sig []byte) error {
	return VerifySignature(payer, d.Digest(HashCreateDataSet(intent)), sig)
}

func (d Domain) VerifyAddPieces(payer common.Address, intent AddPiecesIntent, sig []byte) error {
	return VerifySignature(payer, d.Digest(HashAddPieces(intent)), sig)
}

func (d Domain) VerifySchedulePieceRemovals(payer common.Address, intent SchedulePieceRemovalsIntent, sig []byte) error {
	return VerifySignature(payer, d.Digest(HashSchedulePieceRemovals(intent)), sig)
}

func (d Domain) VerifyDeleteDataSet(payer common.Address, intent DeleteDataSetIntent, sig []byte) error {
	return VerifySignature(payer, d.Digest(HashDeleteDataSet(intent)), sig)
}

// RecoverSigner returns the address that produced sig over digest.
// Recovery bytes 0 and 1 are accepted and treated as 27 and 28.
func RecoverSigner(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, &SignatureLengthError{Expected: SignatureLength, Actual: len(signature)}
	}
	v := signature[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return common.Address{}, &UnsupportedSignatureVError{V: v}
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	sig[64] = v - 27

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature.Wrapf("recover: %s", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that payer signed digest.
func VerifySignature(payer common.Address, digest []byte, signature []byte) error {
	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if signer != payer {
		return &InvalidSignatureError{Expected: payer, Recovered: signer}
	}
	return nil
}

// SignDigest signs digest with key and returns a signature with v in {27, 28}.
func SignDigest(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
