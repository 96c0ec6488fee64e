package server

import (
	"context"
	"net/http"
	"strings"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/keeper"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func (s *Server) DataSet(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		return q.DataSet(ctx, id)
	})
}

func (s *Server) DataSetParties(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		return q.DataSetParties(ctx, id)
	})
}

type metadataResponse struct {
	DataSetId  uint64                `json:"data_set_id"`
	PieceIndex *uint64               `json:"piece_index,omitempty"`
	Entries    []types.MetadataEntry `json:"entries"`
}

func (s *Server) AllDataSetMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		entries, err := q.AllDataSetMetadata(ctx, id)
		if err != nil {
			return nil, err
		}
		return metadataResponse{DataSetId: id, Entries: nonNilEntries(entries)}, nil
	})
}

func (s *Server) DataSetMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		return q.DataSetMetadata(ctx, id, key)
	})
}

func (s *Server) AllPieceMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	piece, ok := uintVar(w, r, "piece")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		entries, err := q.AllPieceMetadata(ctx, id, piece)
		if err != nil {
			return nil, err
		}
		return metadataResponse{DataSetId: id, PieceIndex: &piece, Entries: nonNilEntries(entries)}, nil
	})
}

func (s *Server) PieceMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	piece, ok := uintVar(w, r, "piece")
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		return q.PieceMetadata(ctx, id, piece, key)
	})
}

type provingResponse struct {
	types.ProvingState
	NextChallengeWindowStart *uint64 `json:"next_challenge_window_start,omitempty"`
}

func (s *Server) ProvingState(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		state, err := q.ProvingState(ctx, id)
		if err != nil {
			return nil, err
		}
		resp := provingResponse{ProvingState: state}
		if state.Active() {
			start, err := q.NextChallengeWindowStart(ctx, id)
			if err != nil {
				return nil, err
			}
			resp.NextChallengeWindowStart = &start
		}
		return resp, nil
	})
}

type periodResponse struct {
	DataSetId uint64 `json:"data_set_id"`
	Period    uint64 `json:"period"`
	Deadline  uint64 `json:"deadline,omitempty"`
	Proven    bool   `json:"proven"`
	Epoch     uint64 `json:"epoch,omitempty"`
}

func (s *Server) Period(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	period, ok := uintVar(w, r, "period")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		proven, err := q.IsPeriodProven(ctx, id, period)
		if err != nil {
			return nil, err
		}
		deadline, err := q.PeriodDeadline(ctx, id, period)
		if err != nil {
			return nil, err
		}
		return periodResponse{DataSetId: id, Period: period, Deadline: deadline, Proven: proven}, nil
	})
}

func (s *Server) PeriodForEpoch(w http.ResponseWriter, r *http.Request) {
	id, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	epoch, ok := uintVar(w, r, "epoch")
	if !ok {
		return
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		period, err := q.PeriodIndexForEpoch(ctx, id, epoch)
		if err != nil {
			return nil, err
		}
		proven, err := q.IsPeriodProven(ctx, id, period)
		if err != nil {
			return nil, err
		}
		return periodResponse{DataSetId: id, Period: period, Proven: proven, Epoch: epoch}, nil
	})
}

func (s *Server) ClientDataSets(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["payer"]
	if !common.IsHexAddress(raw) {
		writeJSONError(w, http.StatusBadRequest, "invalid payer", "payer must be a 0x-prefixed 20 byte address")
		return
	}
	payer := common.HexToAddress(raw)
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		sets, err := q.ClientDataSets(ctx, payer)
		if err != nil {
			return nil, err
		}
		if sets == nil {
			sets = []types.DataSetInfo{}
		}
		return sets, nil
	})
}

type pricingResponse struct {
	types.ServicePrice
	SizeBytes    *uint64   `json:"size_bytes,omitempty"`
	RatePerEpoch *math.Int `json:"rate_per_epoch,omitempty"`
}

// Pricing quotes the service price. With ?size_bytes=N it also returns the
// PDP rail rate for a data set of that size.
func (s *Server) Pricing(w http.ResponseWriter, r *http.Request) {
	var size *uint64
	if raw := r.URL.Query().Get("size_bytes"); raw != "" {
		v, err := cast.ToUint64E(raw)
		if err != nil || strings.HasPrefix(raw, "-") {
			writeJSONError(w, http.StatusBadRequest, "invalid size_bytes", "expected a non-negative integer")
			return
		}
		size = &v
	}
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		price, err := q.ServicePrice(ctx)
		if err != nil {
			return nil, err
		}
		resp := pricingResponse{ServicePrice: price}
		if size != nil {
			rate, err := q.RateForSize(ctx, *size)
			if err != nil {
				return nil, err
			}
			resp.SizeBytes = size
			resp.RatePerEpoch = &rate
		}
		return resp, nil
	})
}

func (s *Server) PDPConfig(w http.ResponseWriter, r *http.Request) {
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		return q.PDPConfig(ctx)
	})
}

func (s *Server) Params(w http.ResponseWriter, r *http.Request) {
	s.query(w, func(ctx context.Context, q keeper.Querier) (any, error) {
		return q.Params(ctx)
	})
}

func nonNilEntries(entries []types.MetadataEntry) []types.MetadataEntry {
	if entries == nil {
		return []types.MetadataEntry{}
	}
	return entries
}
