package serve

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// ProgressUpdater pushes status snapshots to connected websocket clients.
// Pushes never block the pipeline: a client that cannot keep up only misses
// intermediate snapshots.
type ProgressUpdater struct {
	upgrader websocket.Upgrader
	cs       map[chan Status]bool
	addc     chan chan Status
	delc     chan chan Status
	notify   chan Status
}

func NewProgressUpdater() *ProgressUpdater {
	m := &ProgressUpdater{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan Status]bool),
		addc:   make(chan chan Status),
		delc:   make(chan chan Status),
		notify: make(chan Status, 1),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case st := <-m.notify:
				for k := range m.cs {
					select {
					case k <- st:
					default:
					}
				}
			}
		}
	}()
	return m
}

// Push enqueues a snapshot for broadcast, dropping it when one is pending.
func (m *ProgressUpdater) Push(st Status) {
	select {
	case m.notify <- st:
	default:
	}
}

func (m *ProgressUpdater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for progress stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *ProgressUpdater) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to progress socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from progress socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan Status, 1)
	m.addc <- notifyc
	defer func() { m.delc <- notifyc }()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				ws.Close()
				return
			}
		}
	}()

	for {
		select {
		case st := <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(st); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
