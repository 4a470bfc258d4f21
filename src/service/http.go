package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// The admin surface is how the competition host drives mutations when it
// isn't linking the engine directly. It binds its own port; the query
// surface stays read-only.

type createRequest struct {
	Competition string        `json:"competition"`
	Owner       model.Address `json:"owner"`
	Dues        []model.Due   `json:"dues"`
}

type depositRequest struct {
	Escrow string        `json:"escrow"`
	Party  model.Address `json:"party"`
	Delta  model.Balance `json:"delta"`
	Height uint64        `json:"height"`
}

type presetRequest struct {
	Owner        model.Address      `json:"owner"`
	Distribution model.Distribution `json:"distribution"`
	Height       uint64             `json:"height"`
}

type lockRequest struct {
	Escrow string        `json:"escrow"`
	Caller model.Address `json:"caller"`
	Value  bool          `json:"value"`
}

type distributeRequest struct {
	Escrow       string                   `json:"escrow"`
	Distribution *model.Distribution      `json:"distribution,omitempty"`
	Height       uint64                   `json:"height"`
	Force        bool                     `json:"force"`
	Ratings      []model.RatingAdjustment `json:"ratings,omitempty"`
}

type withdrawRequest struct {
	Escrow    string        `json:"escrow"`
	Requester model.Address `json:"requester"`
}

// ListenAndServe runs the admin surface until the context is cancelled.
func (s *Service) ListenAndServe(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/create", s.handleCreate)
	mux.HandleFunc("/deposit", s.handleDeposit)
	mux.HandleFunc("/set_preset", s.handleSetPreset)
	mux.HandleFunc("/remove_preset", s.handleRemovePreset)
	mux.HandleFunc("/lock", s.handleLock)
	mux.HandleFunc("/distribute", s.handleDistribute)
	mux.HandleFunc("/withdraw", s.handleWithdraw)

	server := &http.Server{Addr: port, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	s.logger.Info("serving admin api on " + port)
	return server.ListenAndServe()
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(errors.Wrap(err, "bad request body").Error()))
		return false
	}
	return true
}

func (s *Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed encoding response", zap.Error(err))
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, model.ErrInvalidDeposit),
		errors.Is(err, model.ErrInvalidPercentage),
		errors.Is(err, model.ErrDuplicateRecipient),
		errors.Is(err, model.ErrPercentageSumMismatch),
		errors.Is(err, model.ErrStaleHeight):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrEscrowLocked),
		errors.Is(err, model.ErrAlreadySettled),
		errors.Is(err, model.ErrNothingToWithdraw),
		errors.Is(err, model.ErrNotFunded):
		code = http.StatusConflict
	}
	w.WriteHeader(code)
	w.Write([]byte(err.Error()))
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := createRequest{}
	if !decode(w, r, &req) {
		return
	}
	e, err := s.CreateEscrow(r.Context(), req.Competition, req.Owner, req.Dues)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"escrow": e.ID()})
}

func (s *Service) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req := depositRequest{}
	if !decode(w, r, &req) {
		return
	}
	if err := s.RecordDeposit(r.Context(), req.Escrow, req.Party, req.Delta, req.Height); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleSetPreset(w http.ResponseWriter, r *http.Request) {
	req := presetRequest{}
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetPreset(r.Context(), req.Owner, req.Distribution, req.Height); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleRemovePreset(w http.ResponseWriter, r *http.Request) {
	req := presetRequest{}
	if !decode(w, r, &req) {
		return
	}
	if err := s.RemovePreset(r.Context(), req.Owner, req.Height); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleLock(w http.ResponseWriter, r *http.Request) {
	req := lockRequest{}
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetLock(r.Context(), req.Escrow, req.Caller, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleDistribute(w http.ResponseWriter, r *http.Request) {
	req := distributeRequest{}
	if !decode(w, r, &req) {
		return
	}
	ev, err := s.Distribute(r.Context(), req.Escrow, req.Distribution, req.Height, req.Force, req.Ratings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, ev)
}

func (s *Service) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req := withdrawRequest{}
	if !decode(w, r, &req) {
		return
	}
	paid, err := s.Withdraw(r.Context(), req.Escrow, req.Requester)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, paid)
}
