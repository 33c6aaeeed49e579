package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, id core.ConnID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Coord.OnDisconnect(id)
		ctl.limiter.Forget(id)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	pongWait := ctl.opts.PingPeriod + writeWait
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(ctx, id, c, data)
		}
	}
}
