// Package protocol implements the control-plane wire format: a fixed
// envelope carrying one JSON object per line (newline-delimited, UTF-8),
// and the closed set of message types and payload schemas exchanged
// between the Controller and Router agents.
package protocol

import (
	"encoding/json"
	"time"
)

// Type is the closed set of message types the protocol understands.
// Receivers must reject anything outside this set with an ERROR reply and
// tear the session down (see ErrUnknownType).
type Type string

const (
	TypeRegister       Type = "REGISTER"
	TypeRegisterAck    Type = "REGISTER_ACK"
	TypeHeartbeat      Type = "HEARTBEAT"
	TypeHeartbeatAck   Type = "HEARTBEAT_ACK"
	TypeDisconnect     Type = "DISCONNECT"
	TypeNeighborUpdate Type = "NEIGHBOR_UPDATE"
	TypeLinkState      Type = "LINK_STATE"
	TypeTopologyUpdate Type = "TOPOLOGY_UPDATE"
	TypeRouteUpdate    Type = "ROUTE_UPDATE"
	TypeRouteRequest   Type = "ROUTE_REQUEST"
	TypeRouteResponse  Type = "ROUTE_RESPONSE"
	TypeError          Type = "ERROR"
	TypeNack           Type = "NACK"
)

var knownTypes = map[Type]bool{
	TypeRegister:       true,
	TypeRegisterAck:    true,
	TypeHeartbeat:      true,
	TypeHeartbeatAck:   true,
	TypeDisconnect:     true,
	TypeNeighborUpdate: true,
	TypeLinkState:      true,
	TypeTopologyUpdate: true,
	TypeRouteUpdate:    true,
	TypeRouteRequest:   true,
	TypeRouteResponse:  true,
	TypeError:          true,
	TypeNack:           true,
}

// IsKnown reports whether t is a member of the closed message-type set.
func IsKnown(t Type) bool { return knownTypes[t] }

// Message is the fixed wire envelope: every frame is exactly one Message
// marshaled to a single line of JSON.
type Message struct {
	Type      Type            `json:"type"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds a Message with payload marshaled from any JSON-serializable
// value, stamping Timestamp with now.
func New(typ Type, sender, receiver string, payload any, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Sender: sender, Receiver: receiver, Payload: raw, Timestamp: now}, nil
}

// Decode unmarshals m.Payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// --- payload schemas (spec.md §6) ---

// RegisterPayload is the REGISTER payload. The wire field name
// "router_nombre" and the vecino/ruta naming below are preserved verbatim
// from the protocol's closed payload schema.
type RegisterPayload struct {
	RouterID     int    `json:"router_id"`
	RouterNombre string `json:"router_nombre"`
	RouterIP     string `json:"router_ip"`
}

// RegisterAckPayload is the REGISTER_ACK payload.
type RegisterAckPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VecinoEntry is one neighbor row inside a NEIGHBOR_UPDATE payload.
type VecinoEntry struct {
	Nombre string  `json:"nombre"`
	IP     string  `json:"ip"`
	Costo  float64 `json:"costo"`
	Estado string  `json:"estado"`
}

// NeighborUpdatePayload is the NEIGHBOR_UPDATE payload. Accepted and
// logged by the Controller; never applied to controller topology state
// (spec.md Open Question 1, preserved).
type NeighborUpdatePayload struct {
	Vecinos []VecinoEntry `json:"vecinos"`
}

// RutaEntry is one route row inside a ROUTE_UPDATE payload.
type RutaEntry struct {
	Destino        string  `json:"destino"`
	NextHop        string  `json:"next_hop"`
	InterfazSalida string  `json:"interfaz_salida"`
	Costo          float64 `json:"costo"`
	OrigenInfo     string  `json:"origen_info"`
}

// RouteUpdatePayload is the ROUTE_UPDATE payload.
type RouteUpdatePayload struct {
	Rutas []RutaEntry `json:"rutas"`
}

// RouteRequestPayload is the ROUTE_REQUEST payload.
type RouteRequestPayload struct {
	Destino string `json:"destino"`
}

// RutaDetalle is the embedded route detail of a ROUTE_RESPONSE payload.
// NextHop is a pointer and is left nil even when a path exists, preserving
// spec.md Open Question 2's documented wire quirk; callers of the Go client
// API still receive the real next hop (see controlclient.Client).
type RutaDetalle struct {
	Destino string   `json:"destino"`
	NextHop *string  `json:"next_hop,omitempty"`
	Costo   *float64 `json:"costo,omitempty"`
	Camino  []string `json:"camino,omitempty"`
}

// RouteResponsePayload is the ROUTE_RESPONSE payload.
type RouteResponsePayload struct {
	Ruta RutaDetalle `json:"ruta"`
}

// ErrorPayload is the ERROR payload.
type ErrorPayload struct {
	Error string `json:"error"`
}

// HeartbeatPayload and DisconnectPayload carry no fields.
type HeartbeatPayload struct{}
type DisconnectPayload struct{}
