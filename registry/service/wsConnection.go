package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/broadcast"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
)

// wsConnection streams the grains of one subscription to a websocket client.
// Send and Close never block, the socket is written only by writeLoop.
type wsConnection struct {
	id             string
	subscriptionID string
	ws             *websocket.Conn
	config         WebSocketConfig
	logger         log.Logger

	writeCh   chan *subscription.Grain
	done      chan struct{}
	closeOnce sync.Once
	// reason is set before done is closed.
	reason error
}

func newWSConnection(subscriptionID string, ws *websocket.Conn, config WebSocketConfig, logger log.Logger) *wsConnection {
	id := uuid.NewString()
	return &wsConnection{
		id:             id,
		subscriptionID: subscriptionID,
		ws:             ws,
		config:         config,
		logger:         logger.With("subscriptionID", subscriptionID, "connectionID", id),
		writeCh:        make(chan *subscription.Grain, config.QueueSize),
		done:           make(chan struct{}),
	}
}

func (c *wsConnection) ID() string {
	return c.id
}

func (c *wsConnection) Send(g *subscription.Grain) error {
	select {
	case <-c.done:
		return subscription.ErrConnectionClosed
	default:
	}
	select {
	case c.writeCh <- g:
		return nil
	default:
		return subscription.ErrConnectionFull
	}
}

func (c *wsConnection) Close(reason error) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func closeCode(reason error) int {
	switch {
	case errors.Is(reason, subscription.ErrShutdown):
		return websocket.CloseGoingAway
	case errors.Is(reason, broadcast.ErrSlowConsumer):
		return websocket.CloseTryAgainLater
	case errors.Is(reason, subscription.ErrSubscriptionDeleted):
		return websocket.CloseNormalClosure
	}
	return websocket.CloseInternalServerErr
}

func (c *wsConnection) pongWait() time.Duration {
	return c.config.PingPeriod * 10 / 9
}

// readLoop discards client messages and ends when the client goes away. The
// connection is then detached from its subscription.
func (c *wsConnection) readLoop(subscriptions *subscription.Manager) {
	defer func() {
		c.Close(nil)
		subscriptions.Detach(c.subscriptionID, c.id)
	}()
	c.ws.SetReadLimit(maxBodySize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debugf("websocket read ended: %v", err)
			return
		}
	}
}

func (c *wsConnection) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

func (c *wsConnection) writeClose() {
	if c.reason == nil {
		return
	}
	msg := websocket.FormatCloseMessage(closeCode(c.reason), c.reason.Error())
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.WriteTimeout)); err != nil {
		c.logger.Debugf("cannot send websocket close message: %v", err)
	}
}

func (c *wsConnection) writeLoop() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debugf("cannot close websocket: %v", err)
		}
	}()
	for {
		select {
		case g := <-c.writeCh:
			data, err := jsoniter.Marshal(g)
			if err != nil {
				c.logger.Errorf("cannot encode grain: %v", err)
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.logger.Debugf("cannot write grain: %v", err)
				c.Close(err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(err)
				return
			}
		case <-c.done:
			c.writeClose()
			return
		}
	}
}
