package remote

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"

	"github.com/hubertat/curtainkit/curtain"
)

const httpTimeoutsMs = 3000

// moves can take a while, the write timeout of the target route is extended accordingly
const moveResponseTimeout = 2 * time.Minute

type Target interface {
	Snapshot() curtain.Snapshot
	SetTarget(ctx context.Context, position int) error
}

// Server exposes the curtain over plain HTTP, guarded by a shared token in the path.
type Server struct {
	Token    string `json:"token" yaml:"token"`
	HttpAddr string `json:"addr" yaml:"addr"`

	target   Target
	server   *http.Server
	listener net.Listener
	logger   *log.Logger
}

func (s *Server) Handler(target Target) http.Handler {
	s.target = target
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "HttpRemote",
			Level:  log.GetLevel(),
		})
	}

	router := httprouter.New()
	router.GET("/state/token/:token", s.handleState)
	router.PUT("/target/:position/token/:token", s.handleTarget)
	router.POST("/target/:position/token/:token", s.handleTarget)

	return router
}

func (s *Server) Start(target Target) error {
	if len(s.Token) == 0 {
		return errors.New("http remote token must be set")
	}

	httpTimeout := httpTimeoutsMs * time.Millisecond
	s.server = &http.Server{
		Addr:              s.HttpAddr,
		Handler:           s.Handler(target),
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      moveResponseTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	addr := s.HttpAddr
	if len(addr) == 0 {
		addr = ":http"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	s.listener = listener

	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http remote stopped", "err", err)
		}
	}()

	s.logger.Info("http remote listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the address the remote listens on, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *Server) authorized(w http.ResponseWriter, p httprouter.Params) bool {
	if !strings.EqualFold(p.ByName("token"), s.Token) {
		http.Error(w, "token mismatch", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.authorized(w, p) {
		return
	}

	s.writeSnapshot(w)
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.authorized(w, p) {
		return
	}

	position, err := strconv.Atoi(p.ByName("position"))
	if err != nil {
		http.Error(w, "position must be an integer", http.StatusBadRequest)
		return
	}

	err = s.target.SetTarget(r.Context(), position)
	if err != nil {
		s.logger.Warn("set target failed", "position", position, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	s.writeSnapshot(w)
}

func (s *Server) writeSnapshot(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.target.Snapshot())
	if err != nil {
		s.logger.Error("failed to encode state", "err", err)
	}
}

func statusFor(err error) int {
	var moveErr *curtain.MoveFailedError

	switch {
	case errors.Is(err, curtain.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, curtain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, curtain.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.As(err, &moveErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
