package queryserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/arenalabs/escrowd/src/escrow"
	"github.com/arenalabs/escrowd/src/model"
	"github.com/arenalabs/escrowd/src/postgres"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultPageSize = 30

type ServerConfig struct {
	ListenPort      string `yaml:"query_port"`
	PromPort        string `yaml:"prom_port"`
	HealthCheckPort string `yaml:"health_check_port"`
}

// Server is the read-only query surface consumed by front-ends and
// off-chain indexers. All mutation flows through the competition host
// calling the engine directly; nothing here writes escrow state.
type Server struct {
	registry *escrow.Registry
	cache    *SnapshotCache
	rd       *redis.Client
	logger   *zap.Logger
}

func NewServer(registry *escrow.Registry, rd *redis.Client, logger *zap.Logger) *Server {
	var cache *SnapshotCache
	if rd != nil {
		cache = NewSnapshotCache(rd)
	}
	return &Server{
		registry: registry,
		cache:    cache,
		rd:       rd,
		logger:   logger.Named("queryserver"),
	}
}

func (s *Server) ListenAndServe(ctx context.Context, cfg ServerConfig) error {
	if cfg.PromPort != "" {
		StartPromServer(s.logger, cfg.PromPort)
	}
	if cfg.HealthCheckPort != "" {
		s.logger.Info("enabling health check on port " + cfg.HealthCheckPort)
		hcMux := http.NewServeMux()
		hcMux.HandleFunc("/readyz", s.handleReadyz)
		go http.ListenAndServe(cfg.HealthCheckPort, hcMux)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/balances", s.handleBalances)
	mux.HandleFunc("/due", s.handleDue)
	mux.HandleFunc("/dues", s.handleDues)
	mux.HandleFunc("/funded", s.handleFunded)
	mux.HandleFunc("/fully_funded", s.handleFullyFunded)
	mux.HandleFunc("/total_balance", s.handleTotalBalance)
	mux.HandleFunc("/locked", s.handleLocked)
	mux.HandleFunc("/distribution", s.handleDistribution)
	mux.HandleFunc("/dump_state", s.handleDumpState)
	mux.HandleFunc("/readyz", s.handleReadyz)

	server := &http.Server{Addr: cfg.ListenPort, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	s.logger.Info("serving queries on " + cfg.ListenPort)
	return server.ListenAndServe()
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, model.ErrNotFound) {
		code = http.StatusNotFound
	}
	w.WriteHeader(code)
	w.Write([]byte(err.Error()))
}

func (s *Server) escrowFor(r *http.Request) (*escrow.Escrow, error) {
	return s.registry.Get(r.URL.Query().Get("escrow"))
}

func addrParam(r *http.Request) model.Address {
	return model.Address(r.URL.Query().Get("addr"))
}

func heightParam(r *http.Request) (*uint64, error) {
	raw := r.URL.Query().Get("height")
	if raw == "" {
		return nil, nil
	}
	h, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "bad height %q", raw)
	}
	return &h, nil
}

func pageParams(r *http.Request) (limit int, startAfter string) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return limit, r.URL.Query().Get("start_after")
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("balance").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, e.DepositedBalance(addrParam(r)))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("balances").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, startAfter := pageParams(r)
	depositors := e.Depositors()
	sort.Slice(depositors, func(i, j int) bool { return depositors[i] < depositors[j] })
	type entry struct {
		Addr    model.Address `json:"addr"`
		Balance model.Balance `json:"balance"`
	}
	out := []entry{}
	for _, addr := range depositors {
		if startAfter != "" && string(addr) <= startAfter {
			continue
		}
		out = append(out, entry{Addr: addr, Balance: e.DepositedBalance(addr)})
		if len(out) >= limit {
			break
		}
	}
	s.writeJSON(w, out)
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("due").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	due, err := e.Due(addrParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, due)
}

func (s *Server) handleDues(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("dues").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, startAfter := pageParams(r)
	out := []model.Due{}
	for _, due := range e.Dues() {
		if startAfter != "" && string(due.Party) <= startAfter {
			continue
		}
		out = append(out, due)
		if len(out) >= limit {
			break
		}
	}
	s.writeJSON(w, out)
}

func (s *Server) handleFunded(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("funded").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	funded, err := e.IsFunded(addrParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"funded": funded})
}

func (s *Server) handleFullyFunded(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("fully_funded").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"fully_funded": e.IsFullyFunded()})
}

func (s *Server) handleTotalBalance(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("total_balance").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, e.TotalBalance())
}

func (s *Server) handleLocked(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("locked").Inc()
	e, err := s.escrowFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"locked": e.IsLocked()})
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("distribution").Inc()
	addr := addrParam(r)
	height, err := heightParam(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	if s.cache != nil {
		if dist, hit, err := s.cache.At(r.Context(), addr, height); err == nil && hit {
			s.writeJSON(w, dist)
			return
		}
	}
	dist, snapHeight, ok := s.registry.Presets().Effective(addr, height)
	if s.cache != nil && ok {
		// keyed by the snapshot's own height, so a later write between it
		// and the query height is never shadowed by this entry
		if err := s.cache.Put(r.Context(), addr, snapHeight, dist); err != nil {
			s.logger.Warn("failed caching preset snapshot", zap.Error(err))
		}
	}
	s.writeJSON(w, dist)
}

func (s *Server) handleDumpState(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("dump_state").Inc()
	var addr *model.Address
	if a := addrParam(r); a != "" {
		addr = &a
	}
	dump, err := s.registry.DumpState(r.URL.Query().Get("escrow"), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, dump)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	pg, err := postgres.GetConnection(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(errors.Wrap(err, "failed pinging postgres").Error()))
		return
	}
	defer pg.Close(r.Context())
	if err := pg.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(errors.Wrap(err, "failed pinging postgres").Error()))
		return
	}
	if s.rd != nil {
		if err := s.rd.Ping(r.Context()); err.Err() != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(errors.Wrap(err.Err(), "failed pinging redis").Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
