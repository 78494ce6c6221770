package service

import (
	"fmt"
	"net/http"
	"time"

	router "github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/plgd-dev/nmos-registry/registry/uri"
)

func (rh *RequestHandler) subscribeToEvents(w http.ResponseWriter, r *http.Request) (int, error) {
	subscriptionID := router.Vars(r)[uri.SubscriptionIDKey]
	if _, err := rh.subscriptions.Get(subscriptionID); err != nil {
		return http.StatusNotFound, err
	}
	ws, err := rh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the response
		rh.logger.Debugf("cannot upgrade connection of subscription('%v'): %v", subscriptionID, err)
		return http.StatusOK, nil
	}
	conn := newWSConnection(subscriptionID, ws, rh.webSocket, rh.logger)
	if err := rh.subscriptions.Attach(subscriptionID, conn); err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(rh.webSocket.WriteTimeout))
		_ = ws.Close()
		rh.logger.Debugf("cannot attach connection to subscription('%v'): %v", subscriptionID, err)
		return http.StatusOK, nil
	}
	go conn.writeLoop()
	go conn.readLoop(rh.subscriptions)
	return http.StatusOK, nil
}

// SubscribeToEvents upgrades the request to a websocket streaming the grains of the subscription
func (rh *RequestHandler) SubscribeToEvents(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.subscribeToEvents(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot subscribe to events: %w", err), statusCode, w)
	}
}
