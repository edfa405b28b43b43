package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/observer"
)

const (
	streamBuffer = 32
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same open policy as the CORS configuration.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream pushes the account's payments to a websocket as JSON frames until the
// client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	publicKey := chi.URLParam(r, "publicKey")
	if s.streams == nil {
		s.writeError(w, r, errors.New(errors.LayerGateway, errors.STREAM_ERROR, "streaming is not enabled", nil))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		s.logFailure(r, http.StatusInternalServerError, errors.New(errors.LayerGateway, errors.STREAM_ERROR, "websocket upgrade failed", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client never sends; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := requestLog(r, s.log).WithField("pubkey", publicKey)
	log.Info("payment stream opened")

	obs := s.streams(publicKey)
	events, done := observer.Subscribe(ctx, obs, streamBuffer)
	defer obs.Stop()

	for evt := range events {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(evt); err != nil {
			log.WithError(err).Debug("payment stream write failed")
			cancel()
			break
		}
	}

	if err := <-done; err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("payment stream ended")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream ended"))
		return
	}
	log.Info("payment stream closed")
}
