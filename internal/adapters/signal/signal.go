// Package signal is the WebSocket transport for the realtime coordinator:
// handshake authentication, read/write pumps, and the event dispatch that
// turns wire envelopes into coordinator commands.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/app"
	"github.com/talkrooms/talkrooms/internal/auth"
	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// UserLookup resolves the authenticated user at handshake time.
type UserLookup interface {
	UserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	SendBuffer     int
	AllowedOrigins []string
	MessageLimit   int           // chat messages per window per connection
	MessageWindow  time.Duration // sliding window for MessageLimit
}

type Controller struct {
	Coord  *app.Coordinator
	Users  UserLookup
	Tokens *auth.Tokens

	opts     Options
	upgrader websocket.Upgrader
	limiter  *SendRateLimiter
}

func NewController(coord *app.Coordinator, users UserLookup, tokens *auth.Tokens, opts Options) *Controller {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = 20
	}
	if opts.MessageWindow <= 0 {
		opts.MessageWindow = 10 * time.Second
	}
	ctl := &Controller{
		Coord:   coord,
		Users:   users,
		Tokens:  tokens,
		opts:    opts,
		limiter: NewSendRateLimiter(opts.MessageLimit, opts.MessageWindow),
	}
	ctl.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(opts.AllowedOrigins),
	}
	return ctl
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
			continue
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser client; the token cookie still gates access.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// WsConn is one client's transport endpoint: a websocket plus a buffered
// outbound queue drained by the write pump.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal authenticates the handshake and hands the socket to the
// pumps. An invalid or missing access token rejects the upgrade outright;
// no event is ever processed for an unauthenticated connection.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	user, err := ctl.authenticate(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	id := core.ConnID(uuid.NewString())
	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	log.Info().Str("module", "signal").Str("conn", string(id)).Str("user", string(user.ID)).Msg("connected")
	ctl.Coord.Connect(id, user, conn)

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go func() {
		defer cancel()
		ctl.readPump(connCtx, id, conn)
	}()
}

func (ctl *Controller) authenticate(c *gin.Context) (*domain.User, error) {
	tok, err := c.Cookie(auth.CookieName)
	if err != nil || tok == "" {
		return nil, auth.ErrUnauthorized
	}
	uid, err := ctl.Tokens.Verify(tok)
	if err != nil {
		return nil, err
	}
	user, err := ctl.Users.UserByID(c.Request.Context(), uid)
	if err != nil {
		return nil, auth.ErrUnauthorized
	}
	return user, nil
}
