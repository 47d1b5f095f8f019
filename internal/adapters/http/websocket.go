package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/darkhorizon/internal/adapters/nats"
	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/usecases"
)

// wsInbound is a viewport event sent by the map client.
//
//	{"type":"zoom","zoom":9}
//	{"type":"satellite","on":true}
//	{"type":"move_start"}
//	{"type":"move_end","lat":48.1,"lon":11.6}
//	{"type":"search","text":"Munich"}
type wsInbound struct {
	Type string   `json:"type"`
	Zoom *int     `json:"zoom,omitempty"`
	On   bool     `json:"on,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
	Text string   `json:"text,omitempty"`
}

// wsOutbound carries layer snapshots, relayed spots and errors. Lookup results
// use dedicated shapes so that a null value is still sent.
type wsOutbound struct {
	Type           string           `json:"type"`
	BaseLayer      domain.BaseLayer `json:"base_layer,omitempty"`
	OverlayOpacity *float64         `json:"overlay_opacity,omitempty"`
	Satellite      *bool            `json:"satellite,omitempty"`
	Spot           json.RawMessage  `json:"spot,omitempty"`
	Channel        string           `json:"channel,omitempty"`
	Message        string           `json:"message,omitempty"`
}

// wsSink forwards session output to the socket.
type wsSink struct {
	write func(v any) error
}

func (s *wsSink) Layers(v domain.LayerVisibility, satellite bool) {
	op := v.OverlayOpacity
	_ = s.write(wsOutbound{Type: "layers", BaseLayer: v.BaseLayer, OverlayOpacity: &op, Satellite: &satellite})
}

func (s *wsSink) Elevation(meters *int) {
	_ = s.write(struct {
		Type      string `json:"type"`
		Elevation *int   `json:"elevation"`
	}{"elevation", meters})
}

func (s *wsSink) Sample(entry *domain.PaletteEntry) {
	_ = s.write(struct {
		Type  string               `json:"type"`
		Class *domain.PaletteEntry `json:"class"`
	}{"sample", entry})
}

func (s *wsSink) Places(places []domain.Place) {
	_ = s.write(struct {
		Type   string         `json:"type"`
		Places []domain.Place `json:"places"`
	}{"places", places})
}

func (s *wsSink) Failure(channel string, err error) {
	_ = s.write(wsOutbound{Type: "error", Channel: channel, Message: err.Error()})
}

// viewportEvents is the part of a viewport session driven by client messages.
type viewportEvents interface {
	ZoomChanged(zoom int)
	SatelliteToggled(on bool)
	MoveStarted()
	MoveSettled(center domain.GeoPoint)
	SearchChanged(text string)
}

// dispatch applies one client message to the session.
func dispatch(s viewportEvents, m wsInbound) error {
	switch m.Type {
	case "zoom":
		if m.Zoom == nil {
			return fmt.Errorf("zoom requires a zoom level")
		}
		s.ZoomChanged(*m.Zoom)
	case "satellite":
		s.SatelliteToggled(m.On)
	case "move_start":
		s.MoveStarted()
	case "move_end":
		if m.Lat == nil || m.Lon == nil {
			return fmt.Errorf("move_end requires lat and lon")
		}
		center := domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}
		if !center.Valid() {
			return fmt.Errorf("move_end center out of range")
		}
		s.MoveSettled(center)
	case "search":
		s.SearchChanged(m.Text)
	default:
		return fmt.Errorf("unknown message type: %q", m.Type)
	}
	return nil
}

// WebSocketHandler returns a handler that runs one viewport session per connection.
// The optional ?zoom= query parameter sets the starting zoom. When NATS is
// available, newly saved spots are relayed as {"type":"spot"} messages.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote", remoteAddr)
		logger.Info("ws client connected")

		var mu sync.Mutex

		// Helper: thread-safe write
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		cfg := deps.Session
		if z := c.Query("zoom"); z != "" {
			var zoom int
			if _, err := fmt.Sscanf(z, "%d", &zoom); err == nil {
				cfg.InitialZoom = zoom
			}
		}

		sink := &wsSink{write: writeJSON}
		session := usecases.NewViewportSession(cfg, sink, deps.Sampler, deps.Elevation, deps.Search)
		defer session.Close()

		sink.Layers(session.Layers())

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.SubjectSpots, func(msg *nats.Msg) {
				_ = writeJSON(wsOutbound{Type: "spot", Spot: json.RawMessage(msg.Data)})
			})
			if err != nil {
				logger.Warn("ws spot relay unavailable", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsInbound
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(wsOutbound{Type: "error", Message: "invalid JSON"})
				continue
			}
			if err := dispatch(session, m); err != nil {
				_ = writeJSON(wsOutbound{Type: "error", Message: err.Error()})
			}
		}

		logger.Info("ws client disconnected")
	}
}
