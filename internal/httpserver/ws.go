package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/unscramble/internal/game"
	"github.com/robalobadob/unscramble/internal/store"
)

// wsMessage is what a client sends over the socket.
type wsMessage struct {
	Type  string  `json:"type"` // "guess" | "check" | "skip" | "reset"
	Guess *string `json:"guess,omitempty"`
}

// wsEvent is what the server pushes.
type wsEvent struct {
	Type  string    `json:"type"` // "state" | "error"
	State *stateRes `json:"state,omitempty"`
	Error string    `json:"error,omitempty"`
}

const wsWriteWait = 10 * time.Second

// handleWS streams the session's state: the current snapshot on connect, then
// one event per transition. Clients may also send intents on the same socket.
// An open socket counts as activity: pings and pongs touch the session so the
// reaper leaves it alone.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	// The observer only signals; the writer reads a fresh snapshot, so events
	// published from concurrent transitions can never arrive out of order.
	changed := make(chan struct{}, 1)
	cancel := sess.Engine.Subscribe(func(game.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	conn.SetPongHandler(func(string) error {
		sess.Touch(s.opts.Now())
		return nil
	})
	errs := make(chan string, 8)
	closed := make(chan struct{})
	go s.readPump(conn, sess, errs, closed)

	ping := time.NewTicker(s.opts.KeepAlive)
	defer ping.Stop()

	if err := writeState(conn, sess); err != nil {
		return
	}
	for {
		select {
		case <-changed:
			if err := writeState(conn, sess); err != nil {
				return
			}
		case <-ping.C:
			sess.Touch(s.opts.Now())
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case code := <-errs:
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: code}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// readPump applies intents sent by the client until the connection drops.
// Errors are handed to the writer, the only goroutine allowed to write.
func (s *Server) readPump(conn *websocket.Conn, sess *store.Session, errs chan<- string, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		sess.Touch(s.opts.Now())
		if err := apply(sess, intent(msg.Type), msg.Guess); err != nil {
			_, code := errorStatus(err)
			select {
			case errs <- code:
			default:
			}
		}
	}
}

func writeState(conn *websocket.Conn, sess *store.Session) error {
	v := view(sess)
	return conn.WriteJSON(wsEvent{Type: "state", State: &v})
}

// checkOrigin accepts same-host pages and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.opts.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
