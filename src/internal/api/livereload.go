package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"nutrishaweb/src/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // pages may be opened from any dev origin
	},
}

// liveReloadJS reconnects after server restarts and reloads on every message.
const liveReloadJS = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "` + domain.LiveReloadPath + `");
    ws.onmessage = function () { location.reload(); };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
`

func (a *Api) handleLiveReloadScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write([]byte(liveReloadJS)); err != nil {
		a.ctx.Log.Debugf("Writing live reload script: %v", err)
	}
}

func (a *Api) handleLiveReload(w http.ResponseWriter, r *http.Request) {
	// The upgrade response is written on the raw connection, so the CORS
	// headers already set on w are passed along explicitly.
	c, err := upgrader.Upgrade(w, r, w.Header().Clone())
	if err != nil {
		a.ctx.Log.Warnf("Live reload upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer c.Close()

	id, updates := a.hub.Register()
	defer a.hub.Unregister(id)

	// Drain client frames so close messages are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
				return
			}
			if err := c.WriteJSON(msg); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
