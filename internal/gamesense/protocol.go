package gamesense

import (
	"strconv"

	"gglcd/internal/panel"
)

// DefaultEvent is the event name every display update is sent under.
const DefaultEvent = "UPDATE"

// Request paths on the local GameSense service.
const (
	pathMetadata   = "/game_metadata"
	pathBind       = "/bind_game_event"
	pathEvent      = "/game_event"
	pathHeartbeat  = "/game_heartbeat"
	pathRemoveGame = "/remove_game"
)

// Identity is what the application registers as. Game must be upper-case
// A-Z, 0-9, hyphen or underscore; the service rejects anything else.
type Identity struct {
	Game        string
	DisplayName string
	Developer   string
	Event       string

	// DeinitializeTimerMs overrides how long the service keeps the game's
	// last frame without events or heartbeats. Zero leaves the vendor
	// default (15s). Valid range is 1000-60000.
	DeinitializeTimerMs int
}

func (id Identity) event() string {
	if id.Event == "" {
		return DefaultEvent
	}
	return id.Event
}

// Frames maps each panel to its packed image bytes.
type Frames map[panel.Variant][]byte

type metadataRequest struct {
	Game                string `json:"game"`
	Event               string `json:"event"`
	ValueOptional       bool   `json:"value_optional"`
	GameDisplayName     string `json:"game_display_name,omitempty"`
	Developer           string `json:"developer,omitempty"`
	DeinitializeTimerMs int    `json:"deinitialize_timer_length_ms,omitempty"`
}

type bindRequest struct {
	Game          string    `json:"game"`
	Event         string    `json:"event"`
	ValueOptional bool      `json:"value_optional"`
	Handlers      []handler `json:"handlers"`
}

type handler struct {
	Zone       string       `json:"zone"`
	DeviceType string       `json:"device-type"`
	Mode       string       `json:"mode"`
	Datas      []screenData `json:"datas"`
}

type screenData struct {
	HasText   bool      `json:"has-text"`
	ImageData imageData `json:"image-data"`
}

type eventRequest struct {
	Game  string    `json:"game"`
	Event string    `json:"event"`
	Data  eventData `json:"data"`
}

type eventData struct {
	Frame map[string]imageData `json:"frame"`
}

type gameRequest struct {
	Game string `json:"game"`
}

// imageData is a packed bitmap that serializes as a JSON array of byte values.
// encoding/json would otherwise emit []byte as base64, which the service
// does not accept.
type imageData []byte

func (d imageData) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, len(d)*4+2)
	out = append(out, '[')
	for i, b := range d {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(b), 10)
	}
	return append(out, ']'), nil
}

func newBindRequest(id Identity, variants []panel.Variant) bindRequest {
	handlers := make([]handler, 0, len(variants))
	for _, v := range variants {
		handlers = append(handlers, handler{
			Zone:       "one",
			DeviceType: v.DeviceType(),
			Mode:       "screen",
			Datas: []screenData{{
				HasText:   false,
				ImageData: make(imageData, v.Dimensions().ByteLen()),
			}},
		})
	}
	return bindRequest{
		Game:          id.Game,
		Event:         id.event(),
		ValueOptional: true,
		Handlers:      handlers,
	}
}

func newEventRequest(id Identity, frames Frames) eventRequest {
	frame := make(map[string]imageData, len(frames))
	for v, data := range frames {
		frame[v.FrameKey()] = imageData(data)
	}
	return eventRequest{
		Game:  id.Game,
		Event: id.event(),
		Data:  eventData{Frame: frame},
	}
}
