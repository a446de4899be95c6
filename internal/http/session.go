package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voice-journal/internal/service/session"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

func (api *API) getState(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, api.Session.State())
}

// command runs a session command and replies with the resulting state.
func (api *API) command(run func(SessionController) error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := run(api.Session); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, api.Session.State())
	}
}

// wsCommand is a client message on the state stream.
type wsCommand struct {
	Command string `json:"command"` // start, stop, reset
}

// streamState upgrades to a WebSocket that carries every state change. The
// client may send {"command": "start"|"stop"|"reset"}; failures come back as
// {"error": ...}.
func (api *API) streamState(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.Log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := api.Session.Subscribe()
	defer cancel()

	replies := make(chan ErrorResponse, 4)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := api.runCommand(data); err != nil {
				select {
				case replies <- ErrorResponse{Error: err.Error()}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := writeWS(conn, st); err != nil {
				return
			}
		case reply := <-replies:
			if err := writeWS(conn, reply); err != nil {
				return
			}
		}
	}
}

func (api *API) runCommand(data []byte) error {
	var cmd wsCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	switch cmd.Command {
	case "start":
		return api.Session.Start()
	case "stop":
		return api.Session.Stop()
	case "reset":
		return api.Session.Reset()
	default:
		return fmt.Errorf("%w: unknown command %q", errBadRequest, cmd.Command)
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

var _ SessionController = (*session.Session)(nil)
