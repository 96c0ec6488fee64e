package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/storacha/filecoin-services-sub000/app"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/keeper"
)

// Backend is what the HTTP API serves from.
type Backend interface {
	Query(fn func(ctx context.Context, q keeper.Querier) error) error
	Deliver(caller common.Address, calldata []byte) (app.Receipt, error)
	AdvanceBlocks(n uint64) (int64, error)
	Height() (int64, error)
	Rail(railId uint64) (app.Rail, error)
}

type Server struct {
	backend Backend
	logger  log.Logger
	chainID string
	router  *mux.Router
}

func New(backend Backend, logger log.Logger, chainID string) *Server {
	s := &Server{
		backend: backend,
		logger:  logger.With("module", "server"),
		chainID: chainID,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/status", s.Status).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/datasets/{id}", s.DataSet).Methods("GET")
	v1.HandleFunc("/datasets/{id}/parties", s.DataSetParties).Methods("GET")
	v1.HandleFunc("/datasets/{id}/metadata", s.AllDataSetMetadata).Methods("GET")
	v1.HandleFunc("/datasets/{id}/metadata/{key}", s.DataSetMetadata).Methods("GET")
	v1.HandleFunc("/datasets/{id}/pieces/{piece}/metadata", s.AllPieceMetadata).Methods("GET")
	v1.HandleFunc("/datasets/{id}/pieces/{piece}/metadata/{key}", s.PieceMetadata).Methods("GET")
	v1.HandleFunc("/datasets/{id}/proving", s.ProvingState).Methods("GET")
	v1.HandleFunc("/datasets/{id}/periods/{period}", s.Period).Methods("GET")
	v1.HandleFunc("/datasets/{id}/epochs/{epoch}/period", s.PeriodForEpoch).Methods("GET")
	v1.HandleFunc("/clients/{payer}/datasets", s.ClientDataSets).Methods("GET")
	v1.HandleFunc("/rails/{id}", s.Rail).Methods("GET")
	v1.HandleFunc("/pricing", s.Pricing).Methods("GET")
	v1.HandleFunc("/pdp-config", s.PDPConfig).Methods("GET")
	v1.HandleFunc("/params", s.Params).Methods("GET")
	v1.HandleFunc("/calls", s.SubmitCall).Methods("POST")
	v1.HandleFunc("/blocks", s.AdvanceBlocks).Methods("POST")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusResponse struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	GitSHA         string `json:"git_sha"`
	ChainID        string `json:"chain_id"`
	Height         int64  `json:"height"`
	StateVersion   uint64 `json:"state_version"`
	ServiceVersion string `json:"service_version"`
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Name: app.Name, Version: "dev", ChainID: s.chainID}
	if info, ok := debug.ReadBuildInfo(); ok && info != nil {
		if info.Main.Version != "" {
			resp.Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				resp.GitSHA = setting.Value
			}
		}
	}

	height, err := s.backend.Height()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp.Height = height
	err = s.backend.Query(func(ctx context.Context, q keeper.Querier) error {
		var err error
		resp.StateVersion, resp.ServiceVersion, err = q.Version(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type callRequest struct {
	Caller   string `json:"caller"`
	Calldata string `json:"calldata"`
}

// SubmitCall delivers ABI calldata on behalf of the given caller.
func (s *Server) SubmitCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeJSONError(w, http.StatusBadRequest, "invalid caller", "caller must be a 0x-prefixed 20 byte address")
		return
	}
	calldata, err := hexutil.Decode(strings.TrimSpace(req.Calldata))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid calldata", err.Error())
		return
	}

	receipt, err := s.backend.Deliver(common.HexToAddress(req.Caller), calldata)
	if err != nil {
		status := deliverStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("call failed", "caller", req.Caller, "err", err)
		}
		writeJSONError(w, status, err.Error(), deliverHint(status))
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type blocksRequest struct {
	Count any `json:"count"`
}

type blocksResponse struct {
	Height int64 `json:"height"`
}

// AdvanceBlocks moves the simulated chain forward.
func (s *Server) AdvanceBlocks(w http.ResponseWriter, r *http.Request) {
	req := blocksRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	count, err := cast.ToUint64E(req.Count)
	if err != nil || count == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid count", "count must be a positive integer")
		return
	}
	height, err := s.backend.AdvanceBlocks(count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocksResponse{Height: height})
}

func (s *Server) Rail(w http.ResponseWriter, r *http.Request) {
	railId, ok := uintVar(w, r, "id")
	if !ok {
		return
	}
	rail, err := s.backend.Rail(railId)
	if err != nil {
		if errors.Is(err, app.ErrRailUnknown) {
			writeJSONError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rail)
}

// query runs fn and writes its result, or the mapped error.
func (s *Server) query(w http.ResponseWriter, fn func(ctx context.Context, q keeper.Querier) (any, error)) {
	var out any
	err := s.backend.Query(func(ctx context.Context, q keeper.Querier) error {
		var err error
		out, err = fn(ctx, q)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, hint := queryStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSONError(w, status, errorMessage(err), hint)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// uintVar parses a path variable, writing a 400 on failure.
func uintVar(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := mux.Vars(r)[name]
	v, err := cast.ToUint64E(raw)
	if err != nil || strings.HasPrefix(raw, "-") {
		writeJSONError(w, http.StatusBadRequest, "invalid "+name, "expected a non-negative integer")
		return 0, false
	}
	return v, true
}
