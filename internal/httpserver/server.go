// internal/httpserver/server.go
//
// HTTP server wiring for the unscramble backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - Game endpoints: POST /game/new, then per session under /game/{id}:
//     GET state, PUT guess, POST check, POST skip, POST reset, GET ws.
//   - Session tokens: a JWT bound to one game ID, sent back as Bearer
//     header, ?token= query parameter, or the per-game cookie.
//
// Notes:
//   - Every handler answers with the full State snapshot plus the guess text,
//     so a client can render from any response.
//   - "daily" sessions seed their engine from the UTC date (internal/daily).

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/unscramble/internal/daily"
	"github.com/robalobadob/unscramble/internal/game"
	"github.com/robalobadob/unscramble/internal/store"
)

// Options configures a Server.
type Options struct {
	Game         game.Config
	Words        []string
	JWTSecret    string
	TokenTTL     time.Duration // default 24h
	DailySalt    string
	ClientOrigin string           // allowed CORS / websocket origin
	KeepAlive    time.Duration    // websocket ping interval, default 30s; keep below the session timeout
	Now          func() time.Time // default time.Now
}

// Server bundles router, session store and game settings.
type Server struct {
	r        *chi.Mux
	store    store.Store
	opts     Options
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{r: chi.NewRouter(), store: st, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Websocket stays outside the timeout group; it is long-lived by nature.
	s.r.With(s.requireSession).Get("/game/{id}/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"unscramble","endpoints":["/health","POST /game/new","/game/{id}"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]int{
				"words":     len(s.opts.Words),
				"maxRounds": s.opts.Game.MaxRounds,
				"sessions":  s.store.Len(),
			})
		})

		r.Post("/game/new", s.handleNewGame)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/game/{id}", s.handleState)
			r.Put("/game/{id}/guess", s.handleUpdateGuess)
			r.Post("/game/{id}/check", s.handleCheck)
			r.Post("/game/{id}/skip", s.handleSkip)
			r.Post("/game/{id}/reset", s.handleReset)
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ctxSessionKey is the context key type for the resolved *store.Session.
type ctxSessionKey struct{}

// requireSession checks that the request carries a token for {id}, loads the
// session and records activity on it.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		gid, err := s.parseToken(tokenFrom(r))
		if err != nil || gid != id {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sess, err := s.store.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		sess.Touch(s.opts.Now())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *store.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*store.Session)
	return sess
}

// ------------------------------ GAME ---------------------------------------

// stateRes is the body of every game response.
type stateRes struct {
	GameID string `json:"gameId"`
	game.State
	UserGuess string `json:"userGuess"`
	Daily     bool   `json:"daily,omitempty"`
	Date      string `json:"date,omitempty"`
}

func view(sess *store.Session) stateRes {
	st, guess := sess.Engine.Snapshot()
	return stateRes{GameID: sess.ID, State: st, UserGuess: guess, Daily: sess.Daily, Date: sess.Date}
}

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Mode string `json:"mode"` // "normal" (default) | "daily"
}
type newGameRes struct {
	stateRes
	Token string `json:"token"`
}

// handleNewGame creates an engine, starts its first game and stores the
// session. The response carries the token required by every /game/{id} route.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	now := s.opts.Now()
	var opts []game.Option
	isDaily := false
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "", "normal":
	case "daily":
		isDaily = true
		opts = append(opts, game.WithRand(daily.Rand(now, s.opts.DailySalt)))
	default:
		writeError(w, http.StatusBadRequest, "bad_mode")
		return
	}

	e, err := game.NewEngine(s.opts.Words, s.opts.Game, opts...)
	if err != nil {
		log.Error().Err(err).Msg("create engine")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if err := e.ResetGame(); err != nil {
		log.Error().Err(err).Msg("start game")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	sess := store.NewSession(uuid.NewString(), e, now)
	if isDaily {
		sess.Daily, sess.Date = true, daily.DateKey(now)
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	tok, exp, err := s.signToken(sess.ID)
	if err != nil {
		log.Error().Err(err).Str("gameId", sess.ID).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	setTokenCookie(w, sess.ID, tok, exp)

	log.Info().Str("gameId", sess.ID).Bool("daily", isDaily).Msg("new game")
	_ = json.NewEncoder(w).Encode(newGameRes{stateRes: view(sess), Token: tok})
}

// handleState returns the current snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(view(sessionFrom(r)))
}

// guessReq is the payload for PUT /game/{id}/guess and the optional body of
// POST /game/{id}/check.
type guessReq struct {
	Guess *string `json:"guess"`
}

// handleUpdateGuess stores the in-progress guess text.
func (s *Server) handleUpdateGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.act(w, r, intentGuess, req.Guess)
}

// handleCheck checks the guess. A body with "guess" sets and checks that text
// in one transition.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.act(w, r, intentCheck, req.Guess)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, intentSkip, nil)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, intentReset, nil)
}

// act applies an intent and writes the resulting snapshot or the mapped error.
func (s *Server) act(w http.ResponseWriter, r *http.Request, in intent, guess *string) {
	sess := sessionFrom(r)
	if err := apply(sess, in, guess); err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("gameId", sess.ID).Str("intent", string(in)).Msg("apply intent")
		}
		writeError(w, status, code)
		return
	}
	_ = json.NewEncoder(w).Encode(view(sess))
}

// intent names the user actions the engine accepts.
type intent string

const (
	intentGuess intent = "guess"
	intentCheck intent = "check"
	intentSkip  intent = "skip"
	intentReset intent = "reset"
)

var errUnknownIntent = errors.New("unknown intent")

// apply runs one intent against the session's engine. guess is the text sent
// with the intent, nil when there was none.
func apply(sess *store.Session, in intent, guess *string) error {
	e := sess.Engine
	var err error
	switch in {
	case intentGuess:
		var text string
		if guess != nil {
			text = *guess
		}
		e.UpdateUserGuess(text)
		return nil
	case intentCheck:
		if guess != nil {
			err = e.CheckGuess(*guess)
		} else {
			err = e.CheckUserGuess()
		}
	case intentSkip:
		err = e.SkipWord()
	case intentReset:
		err = e.ResetGame()
	default:
		return errUnknownIntent
	}
	if err == nil {
		st := e.State()
		log.Debug().Str("gameId", sess.ID).Str("intent", string(in)).
			Int("round", st.CurrentWordCount).Int("score", st.Score).
			Bool("wrong", st.IsGuessedWordWrong).Bool("gameOver", st.IsGameOver).
			Msg("transition")
	}
	return err
}

// errorStatus maps engine errors to HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrGameOver):
		return http.StatusConflict, "game_over"
	case errors.Is(err, game.ErrNotStarted):
		return http.StatusConflict, "not_started"
	case errors.Is(err, errUnknownIntent):
		return http.StatusBadRequest, "unknown_intent"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	http.Error(w, `{"error":"`+code+`"}`, status)
}

// ------------------------------ tokens -------------------------------------

const tokenCookiePrefix = "unscramble_"

// signToken creates an HS256 JWT bound to one game ID.
func (s *Server) signToken(gameID string) (string, time.Time, error) {
	now := s.opts.Now()
	exp := now.Add(s.opts.TokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"gid": gameID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

// parseToken verifies tok and returns the game ID it is bound to.
func (s *Server) parseToken(tok string) (string, error) {
	if tok == "" {
		return "", errors.New("missing token")
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.opts.Now))
	if err != nil || !t.Valid {
		return "", errors.New("invalid token")
	}
	gid, _ := claims["gid"].(string)
	if gid == "" {
		return "", errors.New("invalid token")
	}
	return gid, nil
}

// setTokenCookie scopes the token cookie to the game's own path so several
// games can run side by side in one browser.
func setTokenCookie(w http.ResponseWriter, gameID, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookiePrefix + gameID,
		Value:    token,
		Path:     "/game/" + gameID,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// tokenFrom extracts the token from the Authorization header, the token query
// parameter (browsers cannot set headers on websockets), or the game cookie.
func tokenFrom(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q
	}
	if c, err := r.Cookie(tokenCookiePrefix + chi.URLParam(r, "id")); err == nil {
		return c.Value
	}
	return ""
}
