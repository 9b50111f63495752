// Package server exposes the HTTP surface: the liveness probe, the
// incoming-call webhook that points the provider at the media stream, the
// call-status callback, and the media-stream websocket itself.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tidewater-labs/callbridge/bridge"
	"github.com/tidewater-labs/callbridge/bridge/contract"
	"github.com/tidewater-labs/callbridge/bridge/finalize"
	"github.com/tidewater-labs/callbridge/pkg/realtime"
	"github.com/tidewater-labs/callbridge/pkg/telephony"
)

type Config struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

// Deps is everything a per-call bridge needs. The server owns nothing
// per-call; each media-stream connection builds its own bridge.
type Deps struct {
	Realtime     realtime.Config
	Instructions string
	Directory    contract.CallDirectory
	Calendar     contract.Calendar
	Store        contract.Persistence
	Memory       contract.Memory
	Knowledge    contract.Knowledge
	Finalizer    *finalize.Finalizer
}

type Server struct {
	cfg      Config
	deps     Deps
	upgrader websocket.Upgrader
}

func New(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:  cfg,
		deps: deps,
		upgrader: websocket.Upgrader{
			// The provider's media stream carries no browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleLiveness)
	// The provider posts or gets depending on webhook configuration.
	r.HandleFunc("/incoming-call", s.handleIncomingCall)
	r.Post("/call-status", s.handleCallStatus)
	r.Get("/media-stream", s.handleMediaStream)
	return r
}

func (s *Server) Run() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("server listening")
	return http.ListenAndServe(s.cfg.Addr, s.Router())
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "AI voice assistant is running"})
}

// handleIncomingCall answers the provider's call webhook with instructions
// to open the media stream back to this host.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	doc := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><Response><Connect><Stream url="wss://%s/media-stream"/></Connect></Response>`,
		r.Host)
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(doc))
}

// handleCallStatus accepts the dial-action callback after an expert
// handoff. Nothing to do with it; the provider only needs a 200.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("status", r.FormValue("DialCallStatus")).Msg("call status callback")
	w.WriteHeader(http.StatusOK)
}

// handleMediaStream runs one call: it upgrades the provider's websocket,
// dials the AI stream, and pumps both until either side closes.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("media stream upgrade failed")
		return
	}
	defer ws.Close()

	aiConn, err := realtime.Dial(s.deps.Realtime, s.deps.Instructions)
	if err != nil {
		log.Error().Err(err).Msg("ai stream dial failed")
		return
	}
	defer aiConn.Close()

	b := bridge.New(
		aiConn,
		telephony.NewStreamConn(ws),
		s.deps.Directory,
		s.deps.Calendar,
		s.deps.Store,
		s.deps.Memory,
		s.deps.Finalizer,
		log.Logger,
	).WithKnowledge(s.deps.Knowledge)

	ctx := r.Context()

	// Finalization outlives the request: the sockets are gone by then.
	finalizeCall := func() {
		fctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b.Finalize(fctx)
	}

	go func() {
		for {
			evt, err := aiConn.Read()
			if err != nil {
				log.Debug().Err(err).Msg("ai stream closed")
				_ = ws.Close()
				return
			}
			b.HandleAIEvent(ctx, evt)
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("media stream closed")
			break
		}
		frame, err := telephony.DecodeFrame(raw)
		if err != nil {
			log.Warn().Err(err).Msg("bad media frame")
			continue
		}
		b.HandleTelephonyFrame(ctx, frame)
	}

	finalizeCall()
}
