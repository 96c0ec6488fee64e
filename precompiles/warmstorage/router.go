package warmstorage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	wskeeper "github.com/storacha/filecoin-services-sub000/x/warmstorage/keeper"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

const routerABIJSON = `[
  {
    "type":"function",
    "name":"dataSetCreated",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"creator","type":"address"},
      {"name":"extraData","type":"bytes"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"piecesAdded",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"firstAdded","type":"uint256"},
      {"name":"pieceData","type":"tuple[]","components":[
        {"name":"data","type":"bytes"}
      ]},
      {"name":"extraData","type":"bytes"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"piecesScheduledRemove",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"pieceIds","type":"uint256[]"},
      {"name":"extraData","type":"bytes"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"dataSetDeleted",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"deletedLeafCount","type":"uint256"},
      {"name":"extraData","type":"bytes"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"storageProviderChanged",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"oldServiceProvider","type":"address"},
      {"name":"newServiceProvider","type":"address"},
      {"name":"extraData","type":"bytes"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"possessionProven",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"challengedLeafCount","type":"uint256"},
      {"name":"seed","type":"uint256"},
      {"name":"challengeCount","type":"uint256"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"nextProvingPeriod",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"},
      {"name":"challengeEpoch","type":"uint256"},
      {"name":"leafCount","type":"uint256"},
      {"name":"extraData","type":"bytes"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"validatePayment",
    "stateMutability":"view",
    "inputs":[
      {"name":"railId","type":"uint256"},
      {"name":"proposedAmount","type":"uint256"},
      {"name":"fromEpoch","type":"uint256"},
      {"name":"toEpoch","type":"uint256"},
      {"name":"rate","type":"uint256"}
    ],
    "outputs":[
      {"name":"modifiedAmount","type":"uint256"},
      {"name":"settleUpto","type":"uint256"},
      {"name":"note","type":"string"}
    ]
  },
  {
    "type":"function",
    "name":"railTerminated",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"railId","type":"uint256"},
      {"name":"terminator","type":"address"},
      {"name":"endEpoch","type":"uint256"}
    ],
    "outputs":[]
  },
  {
    "type":"function",
    "name":"terminateService",
    "stateMutability":"nonpayable",
    "inputs":[
      {"name":"dataSetId","type":"uint256"}
    ],
    "outputs":[]
  }
]`

// ErrInvalidCalldata marks calldata that does not decode against the ABI.
var ErrInvalidCalldata = errorsmod.Register("warmstorage-router", 2, "invalid calldata")

// PieceData is the ABI shape of one entry of piecesAdded's pieceData array.
type PieceData struct {
	Data []byte
}

// Router decodes verifier, ledger and client calldata and dispatches it to
// the keeper on behalf of an explicit caller.
type Router struct {
	keeper wskeeper.Keeper
	abi    abi.ABI
}

var parseABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(routerABIJSON))
})

func New(keeper wskeeper.Keeper) (*Router, error) {
	parsed, err := parseABI()
	if err != nil {
		return nil, err
	}
	return &Router{keeper: keeper, abi: parsed}, nil
}

func MustNew(keeper wskeeper.Keeper) *Router {
	r, err := New(keeper)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Router) ABI() abi.ABI { return r.abi }

// Method resolves the method a calldata selector names.
func (r *Router) Method(input []byte) (*abi.Method, error) {
	if len(input) < 4 {
		return nil, ErrInvalidCalldata.Wrap("missing selector")
	}
	method, err := r.abi.MethodById(input[:4])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("unknown selector: %s", err)
	}
	return method, nil
}

// Call runs input as if caller had sent it. The returned bytes are the
// ABI-encoded outputs of the method.
func (r *Router) Call(ctx context.Context, caller common.Address, input []byte) ([]byte, error) {
	method, err := r.Method(input)
	if err != nil {
		return nil, err
	}
	data := input[4:]

	switch method.Name {
	case "dataSetCreated":
		return r.runDataSetCreated(ctx, caller, method, data)
	case "piecesAdded":
		return r.runPiecesAdded(ctx, caller, method, data)
	case "piecesScheduledRemove":
		return r.runPiecesScheduledRemove(ctx, caller, method, data)
	case "dataSetDeleted":
		return r.runDataSetDeleted(ctx, caller, method, data)
	case "storageProviderChanged":
		return r.runStorageProviderChanged(ctx, caller, method, data)
	case "possessionProven":
		return r.runPossessionProven(ctx, caller, method, data)
	case "nextProvingPeriod":
		return r.runNextProvingPeriod(ctx, caller, method, data)
	case "validatePayment":
		return r.runValidatePayment(ctx, caller, method, data)
	case "railTerminated":
		return r.runRailTerminated(ctx, caller, method, data)
	case "terminateService":
		return r.runTerminateService(ctx, caller, method, data)
	default:
		return nil, fmt.Errorf("warmstorage router: method %q not implemented", method.Name)
	}
}

func (r *Router) runDataSetCreated(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetCreated: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetCreated: invalid dataSetId: %s", err)
	}
	creator, err := asAddress(args["creator"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetCreated: invalid creator: %s", err)
	}
	extraData, err := asBytes(args["extraData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetCreated: invalid extraData: %s", err)
	}
	if err := r.keeper.DataSetCreated(ctx, caller, dataSetId, creator, extraData); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runPiecesAdded(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesAdded: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesAdded: invalid dataSetId: %s", err)
	}
	firstAdded, err := asUint64(args["firstAdded"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesAdded: invalid firstAdded: %s", err)
	}
	pieces, err := decodePieceData(args["pieceData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesAdded: %s", err)
	}
	extraData, err := asBytes(args["extraData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesAdded: invalid extraData: %s", err)
	}
	if err := r.keeper.PiecesAdded(ctx, caller, dataSetId, firstAdded, pieces, extraData); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runPiecesScheduledRemove(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesScheduledRemove: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesScheduledRemove: invalid dataSetId: %s", err)
	}
	pieceIds, err := asUint64Slice(args["pieceIds"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesScheduledRemove: invalid pieceIds: %s", err)
	}
	extraData, err := asBytes(args["extraData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("piecesScheduledRemove: invalid extraData: %s", err)
	}
	if err := r.keeper.PiecesScheduledRemove(ctx, caller, dataSetId, pieceIds, extraData); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runDataSetDeleted(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetDeleted: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetDeleted: invalid dataSetId: %s", err)
	}
	deletedLeafCount, err := asUint64(args["deletedLeafCount"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetDeleted: invalid deletedLeafCount: %s", err)
	}
	extraData, err := asBytes(args["extraData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("dataSetDeleted: invalid extraData: %s", err)
	}
	if err := r.keeper.DataSetDeleted(ctx, caller, dataSetId, deletedLeafCount, extraData); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runStorageProviderChanged(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("storageProviderChanged: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("storageProviderChanged: invalid dataSetId: %s", err)
	}
	oldPayee, err := asAddress(args["oldServiceProvider"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("storageProviderChanged: invalid oldServiceProvider: %s", err)
	}
	newPayee, err := asAddress(args["newServiceProvider"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("storageProviderChanged: invalid newServiceProvider: %s", err)
	}
	extraData, err := asBytes(args["extraData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("storageProviderChanged: invalid extraData: %s", err)
	}
	if err := r.keeper.StorageProviderChanged(ctx, caller, dataSetId, oldPayee, newPayee, extraData); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runPossessionProven(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("possessionProven: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("possessionProven: invalid dataSetId: %s", err)
	}
	leafCount, err := asUint64(args["challengedLeafCount"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("possessionProven: invalid challengedLeafCount: %s", err)
	}
	seed, ok := args["seed"].(*big.Int)
	if !ok {
		return nil, ErrInvalidCalldata.Wrapf("possessionProven: invalid seed: %T", args["seed"])
	}
	challengeCount, err := asUint64(args["challengeCount"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("possessionProven: invalid challengeCount: %s", err)
	}
	if err := r.keeper.PossessionProven(ctx, caller, dataSetId, leafCount, seed, challengeCount); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runNextProvingPeriod(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("nextProvingPeriod: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("nextProvingPeriod: invalid dataSetId: %s", err)
	}
	challengeEpoch, err := asUint64(args["challengeEpoch"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("nextProvingPeriod: invalid challengeEpoch: %s", err)
	}
	leafCount, err := asUint64(args["leafCount"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("nextProvingPeriod: invalid leafCount: %s", err)
	}
	extraData, err := asBytes(args["extraData"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("nextProvingPeriod: invalid extraData: %s", err)
	}
	if err := r.keeper.NextProvingPeriod(ctx, caller, dataSetId, challengeEpoch, leafCount, extraData); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runValidatePayment(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("validatePayment: failed to unpack args: %s", err)
	}
	railId, err := asUint64(args["railId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("validatePayment: invalid railId: %s", err)
	}
	proposed, err := asMathInt(args["proposedAmount"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("validatePayment: invalid proposedAmount: %s", err)
	}
	fromEpoch, err := asUint64(args["fromEpoch"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("validatePayment: invalid fromEpoch: %s", err)
	}
	toEpoch, err := asUint64(args["toEpoch"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("validatePayment: invalid toEpoch: %s", err)
	}
	rate, err := asMathInt(args["rate"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("validatePayment: invalid rate: %s", err)
	}
	res, err := r.keeper.ValidatePayment(ctx, caller, railId, proposed, fromEpoch, toEpoch, rate)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(res.ModifiedAmount.BigInt(), new(big.Int).SetUint64(res.SettleUpto), res.Note)
}

func (r *Router) runRailTerminated(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("railTerminated: failed to unpack args: %s", err)
	}
	railId, err := asUint64(args["railId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("railTerminated: invalid railId: %s", err)
	}
	terminator, err := asAddress(args["terminator"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("railTerminated: invalid terminator: %s", err)
	}
	endEpoch, err := asUint64(args["endEpoch"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("railTerminated: invalid endEpoch: %s", err)
	}
	if err := r.keeper.RailTerminated(ctx, caller, railId, terminator, endEpoch); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) runTerminateService(ctx context.Context, caller common.Address, method *abi.Method, data []byte) ([]byte, error) {
	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, ErrInvalidCalldata.Wrapf("terminateService: failed to unpack args: %s", err)
	}
	dataSetId, err := asUint64(args["dataSetId"])
	if err != nil {
		return nil, ErrInvalidCalldata.Wrapf("terminateService: invalid dataSetId: %s", err)
	}
	if err := r.keeper.TerminateService(ctx, caller, dataSetId); err != nil {
		return nil, err
	}
	return method.Outputs.Pack()
}

func (r *Router) Pack(name string, args ...any) ([]byte, error) {
	return pack(r.abi, name, args...)
}

// Pack encodes a call to name without a keeper behind it. uint256 inputs
// accept uint64, uint256[] accepts []uint64 and the pieceData tuple array
// accepts [][]byte.
func Pack(name string, args ...any) ([]byte, error) {
	parsed, err := parseABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, name, args...)
}

func pack(parsed abi.ABI, name string, args ...any) ([]byte, error) {
	method, ok := parsed.Methods[name]
	if !ok {
		return nil, fmt.Errorf("warmstorage router: unknown method %q", name)
	}
	if len(args) != len(method.Inputs) {
		return nil, fmt.Errorf("%s: expected %d args, got %d", name, len(method.Inputs), len(args))
	}
	converted := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case uint64:
			converted[i] = new(big.Int).SetUint64(v)
		case []uint64:
			out := make([]*big.Int, len(v))
			for j, id := range v {
				out[j] = new(big.Int).SetUint64(id)
			}
			converted[i] = out
		case [][]byte:
			out := make([]PieceData, len(v))
			for j, data := range v {
				out[j] = PieceData{Data: data}
			}
			converted[i] = out
		case math.Int:
			converted[i] = v.BigInt()
		default:
			converted[i] = arg
		}
	}
	return parsed.Pack(name, converted...)
}

// UnpackValidation decodes validatePayment's return data.
func (r *Router) UnpackValidation(out []byte) (types.ValidationResult, error) {
	values, err := r.abi.Unpack("validatePayment", out)
	if err != nil {
		return types.ValidationResult{}, err
	}
	if len(values) != 3 {
		return types.ValidationResult{}, fmt.Errorf("validatePayment: expected 3 outputs, got %d", len(values))
	}
	amount, err := asMathInt(values[0])
	if err != nil {
		return types.ValidationResult{}, ErrInvalidCalldata.Wrapf("validatePayment: invalid modifiedAmount: %s", err)
	}
	settleUpto, err := asUint64(values[1])
	if err != nil {
		return types.ValidationResult{}, ErrInvalidCalldata.Wrapf("validatePayment: invalid settleUpto: %s", err)
	}
	note, err := asString(values[2])
	if err != nil {
		return types.ValidationResult{}, ErrInvalidCalldata.Wrapf("validatePayment: invalid note: %s", err)
	}
	return types.ValidationResult{ModifiedAmount: amount, SettleUpto: settleUpto, Note: note}, nil
}

func decodePieceData(v any) ([][]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("pieceData must be a slice, got %T", v)
	}

	out := make([][]byte, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		pv := rv.Index(i)
		if pv.Kind() == reflect.Pointer {
			pv = pv.Elem()
		}
		if pv.Kind() != reflect.Struct {
			return nil, fmt.Errorf("pieceData[%d] must be struct, got %s", i, pv.Kind())
		}
		field := pv.FieldByName("Data")
		if !field.IsValid() {
			return nil, fmt.Errorf("pieceData[%d] has no data field", i)
		}
		b, err := asBytes(field.Interface())
		if err != nil {
			return nil, fmt.Errorf("pieceData[%d].data invalid: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func asUint64(v any) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case int:
		if t < 0 {
			return 0, errors.New("negative int")
		}
		return uint64(t), nil
	case *big.Int:
		if t.Sign() < 0 {
			return 0, errors.New("negative big int")
		}
		if t.BitLen() > 64 {
			return 0, errors.New("big int overflows uint64")
		}
		return t.Uint64(), nil
	default:
		return 0, fmt.Errorf("unsupported uint type %T", v)
	}
}

func asUint64Slice(v any) ([]uint64, error) {
	values, ok := v.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("not a uint256 array: %T", v)
	}
	out := make([]uint64, len(values))
	for i, value := range values {
		id, err := asUint64(value)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = id
	}
	return out, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("not a string: %T", v)
	}
	return s, nil
}

func asBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	default:
		return nil, fmt.Errorf("not bytes: %T", v)
	}
}

func asAddress(v any) (common.Address, error) {
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("not an address: %T", v)
	}
	return a, nil
}

func asMathInt(v any) (math.Int, error) {
	switch t := v.(type) {
	case *big.Int:
		if t.Sign() < 0 {
			return math.Int{}, errors.New("negative")
		}
		if t.BitLen() > math.MaxBitLen {
			return math.Int{}, errors.New("exceeds 256 bits")
		}
		return math.NewIntFromBigInt(t), nil
	case uint64:
		return math.NewIntFromUint64(t), nil
	default:
		return math.Int{}, fmt.Errorf("unsupported int type %T", v)
	}
}
