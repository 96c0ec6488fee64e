package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	commcid "github.com/filecoin-project/go-fil-commcid"
	"github.com/ipfs/go-cid"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/filecoin-services-sub000/precompiles/warmstorage"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

const (
	flagKey              = "key"
	flagClientDataSetID  = "client-data-set-id"
	flagDataSetID        = "data-set-id"
	flagPayee            = "payee"
	flagMetadata         = "metadata"
	flagNonce            = "nonce"
	flagFirstAdded       = "first-added"
	flagPiece            = "piece"
	flagPieceMetadata    = "piece-metadata"
	flagDeletedLeafCount = "deleted-leaf-count"
)

// SignCmd groups the payer-side signing helpers. Each prints the EIP-712
// digest, the signature and the extraData the verifier forwards, plus the
// full callback calldata when --data-set-id is given.
func SignCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign payer authorisations for data set operations",
	}
	cmd.PersistentFlags().String(flagKey, "", "payer secp256k1 private key, hex")
	cmd.PersistentFlags().Uint64(flagClientDataSetID, 0, "payer-scoped data set id the authorisation is bound to")
	cmd.PersistentFlags().Uint64(flagDataSetID, 0, "verifier data set id; when set the callback calldata is printed too")

	cmd.AddCommand(
		signCreateDataSetCmd(v),
		signAddPiecesCmd(v),
		signScheduleRemovalsCmd(v),
		signDeleteDataSetCmd(v),
	)
	return cmd
}

type signOutput struct {
	Signer    common.Address `json:"signer"`
	Digest    string         `json:"digest"`
	Signature string         `json:"signature"`
	ExtraData string         `json:"extra_data"`
	Calldata  string         `json:"calldata,omitempty"`
}

type signer struct {
	key             *ecdsa.PrivateKey
	domain          types.Domain
	clientDataSetId uint64
	dataSetId       uint64
}

func loadSigner(v *viper.Viper) (signer, error) {
	cfg, err := LoadConfig(v)
	if err != nil {
		return signer{}, err
	}
	raw := strings.TrimPrefix(strings.TrimSpace(v.GetString(flagKey)), "0x")
	if raw == "" {
		return signer{}, fmt.Errorf("--%s or %s_KEY is required", flagKey, EnvPrefix)
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return signer{}, fmt.Errorf("invalid key: %w", err)
	}
	s := signer{key: key, domain: types.DomainFromParams(cfg.Params)}
	if s.clientDataSetId, err = cast.ToUint64E(v.Get(flagClientDataSetID)); err != nil {
		return signer{}, fmt.Errorf("%s: %w", flagClientDataSetID, err)
	}
	if s.dataSetId, err = cast.ToUint64E(v.Get(flagDataSetID)); err != nil {
		return signer{}, fmt.Errorf("%s: %w", flagDataSetID, err)
	}
	return s, nil
}

func (s signer) sign(structHash common.Hash) (signOutput, []byte, error) {
	digest := s.domain.Digest(structHash)
	sig, err := types.SignDigest(digest, s.key)
	if err != nil {
		return signOutput{}, nil, err
	}
	return signOutput{
		Signer:    crypto.PubkeyToAddress(s.key.PublicKey),
		Digest:    hexutil.Encode(digest),
		Signature: hexutil.Encode(sig),
	}, sig, nil
}

// finish fills in extraData and, when a data set id was given, the calldata
// produced by pack.
func (s signer) finish(cmd *cobra.Command, out signOutput, extra []byte, pack func() ([]byte, error)) error {
	out.ExtraData = hexutil.Encode(extra)
	if s.dataSetId != 0 {
		calldata, err := pack()
		if err != nil {
			return err
		}
		out.Calldata = hexutil.Encode(calldata)
	}
	return printJSON(cmd, out)
}

func signCreateDataSetCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-dataset",
		Short: "Authorise a new data set with a payee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSigner(v)
			if err != nil {
				return err
			}
			payee, err := addressFlag(cmd, flagPayee)
			if err != nil {
				return err
			}
			pairs, err := cmd.Flags().GetStringArray(flagMetadata)
			if err != nil {
				return err
			}
			keys, values, err := ParseMetadata(pairs)
			if err != nil {
				return err
			}
			entries, err := types.NewMetadataEntries(keys, values)
			if err != nil {
				return err
			}

			out, sig, err := s.sign(types.HashCreateDataSet(types.CreateDataSetIntent{
				ClientDataSetId: s.clientDataSetId,
				Payee:           payee,
				Metadata:        entries,
			}))
			if err != nil {
				return err
			}
			extra, err := types.DataSetCreatedExtra{
				Payer:          out.Signer,
				MetadataKeys:   keys,
				MetadataValues: values,
				Signature:      sig,
			}.Encode()
			if err != nil {
				return err
			}
			return s.finish(cmd, out, extra, func() ([]byte, error) {
				return warmstorage.Pack("dataSetCreated", s.dataSetId, payee, extra)
			})
		},
	}
	cmd.Flags().String(flagPayee, "", "service provider receiving payment")
	cmd.Flags().StringArray(flagMetadata, nil, "data set metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired(flagPayee)
	return cmd
}

func signAddPiecesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-pieces",
		Short: "Authorise adding pieces to a data set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSigner(v)
			if err != nil {
				return err
			}
			rawPieces, err := cmd.Flags().GetStringArray(flagPiece)
			if err != nil {
				return err
			}
			pieces, err := ParsePieces(rawPieces)
			if err != nil {
				return err
			}
			firstAdded, err := cmd.Flags().GetUint64(flagFirstAdded)
			if err != nil {
				return err
			}
			rawNonce, err := cmd.Flags().GetString(flagNonce)
			if err != nil {
				return err
			}
			nonce, ok := math.NewIntFromString(rawNonce)
			if !ok || nonce.IsNegative() {
				return fmt.Errorf("invalid nonce %q", rawNonce)
			}
			pairs, err := cmd.Flags().GetStringArray(flagPieceMetadata)
			if err != nil {
				return err
			}
			keys, values, err := ParsePieceMetadata(pairs, len(pieces))
			if err != nil {
				return err
			}
			perPiece := make([][]types.MetadataEntry, len(pieces))
			for i := range pieces {
				if perPiece[i], err = types.NewMetadataEntries(keys[i], values[i]); err != nil {
					return fmt.Errorf("piece %d: %w", i, err)
				}
			}

			out, sig, err := s.sign(types.HashAddPieces(types.AddPiecesIntent{
				ClientDataSetId: s.clientDataSetId,
				Nonce:           nonce.BigInt(),
				FirstAdded:      firstAdded,
				Pieces:          pieces,
				PieceMetadata:   perPiece,
			}))
			if err != nil {
				return err
			}
			extra, err := types.PiecesAddedExtra{
				Nonce:          nonce.BigInt(),
				MetadataKeys:   keys,
				MetadataValues: values,
				Signature:      sig,
			}.Encode()
			if err != nil {
				return err
			}
			return s.finish(cmd, out, extra, func() ([]byte, error) {
				return warmstorage.Pack("piecesAdded", s.dataSetId, firstAdded, pieces, extra)
			})
		},
	}
	cmd.Flags().StringArray(flagPiece, nil, "piece CID, or a 0x-prefixed 32 byte piece commitment (repeatable)")
	cmd.Flags().StringArray(flagPieceMetadata, nil, "piece metadata as <position>:key=value, position counts from 0 in --piece order (repeatable)")
	cmd.Flags().Uint64(flagFirstAdded, 0, "index the first piece will be stored at")
	cmd.Flags().String(flagNonce, "0", "payer nonce, never reused")
	_ = cmd.MarkFlagRequired(flagPiece)
	return cmd
}

func signScheduleRemovalsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-removals [piece-id]...",
		Short: "Authorise scheduling pieces for removal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSigner(v)
			if err != nil {
				return err
			}
			pieceIds := make([]uint64, len(args))
			for i, arg := range args {
				if strings.HasPrefix(arg, "-") {
					return fmt.Errorf("invalid piece id %q", arg)
				}
				if pieceIds[i], err = cast.ToUint64E(arg); err != nil {
					return fmt.Errorf("invalid piece id %q: %w", arg, err)
				}
			}

			out, sig, err := s.sign(types.HashSchedulePieceRemovals(types.SchedulePieceRemovalsIntent{
				ClientDataSetId: s.clientDataSetId,
				PieceIds:        pieceIds,
			}))
			if err != nil {
				return err
			}
			extra, err := types.EncodeSignatureExtra(sig)
			if err != nil {
				return err
			}
			return s.finish(cmd, out, extra, func() ([]byte, error) {
				return warmstorage.Pack("piecesScheduledRemove", s.dataSetId, pieceIds, extra)
			})
		},
	}
}

func signDeleteDataSetCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-dataset",
		Short: "Authorise deleting a data set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSigner(v)
			if err != nil {
				return err
			}
			leaves, err := cmd.Flags().GetUint64(flagDeletedLeafCount)
			if err != nil {
				return err
			}

			out, sig, err := s.sign(types.HashDeleteDataSet(types.DeleteDataSetIntent{
				ClientDataSetId: s.clientDataSetId,
			}))
			if err != nil {
				return err
			}
			extra, err := types.EncodeSignatureExtra(sig)
			if err != nil {
				return err
			}
			return s.finish(cmd, out, extra, func() ([]byte, error) {
				return warmstorage.Pack("dataSetDeleted", s.dataSetId, leaves, extra)
			})
		},
	}
	cmd.Flags().Uint64(flagDeletedLeafCount, 0, "leaf count reported with the deletion callback")
	return cmd
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s: %q is not a hex address", name, raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseMetadata splits key=value pairs. Values may contain '='.
func ParseMetadata(pairs []string) (keys, values []string, err error) {
	keys, values = []string{}, []string{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, nil, fmt.Errorf("metadata %q: expected key=value", pair)
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	return keys, values, nil
}

// ParsePieceMetadata groups <position>:key=value pairs by piece position.
// Every piece gets a (possibly empty) entry list.
func ParsePieceMetadata(pairs []string, pieces int) (keys, values [][]string, err error) {
	keys = make([][]string, pieces)
	values = make([][]string, pieces)
	for i := range keys {
		keys[i], values[i] = []string{}, []string{}
	}
	for _, pair := range pairs {
		rawPos, kv, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, nil, fmt.Errorf("piece metadata %q: expected <position>:key=value", pair)
		}
		pos, err := cast.ToIntE(rawPos)
		if err != nil || pos < 0 || pos >= pieces {
			return nil, nil, fmt.Errorf("piece metadata %q: position out of range [0, %d)", pair, pieces)
		}
		k, val, err := ParseMetadata([]string{kv})
		if err != nil {
			return nil, nil, err
		}
		keys[pos] = append(keys[pos], k[0])
		values[pos] = append(values[pos], val[0])
	}
	return keys, values, nil
}

// ParsePieces accepts piece CIDs or raw 32 byte piece commitments and
// returns the CID bytes the verifier reports.
func ParsePieces(raw []string) ([][]byte, error) {
	out := make([][]byte, len(raw))
	for i, s := range raw {
		var c cid.Cid
		if strings.HasPrefix(s, "0x") {
			commP, err := hexutil.Decode(s)
			if err != nil {
				return nil, fmt.Errorf("piece %d: %w", i, err)
			}
			if c, err = commcid.DataCommitmentV1ToCID(commP); err != nil {
				return nil, fmt.Errorf("piece %d: %w", i, err)
			}
		} else {
			var err error
			if c, err = cid.Decode(s); err != nil {
				return nil, fmt.Errorf("piece %d: %w", i, err)
			}
		}
		out[i] = c.Bytes()
	}
	return out, nil
}
