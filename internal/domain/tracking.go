package domain

// Credentials is the per-user basic-auth pair for the Traccar API. It is
// supplied by the transport layer on every turn and is never cached or logged.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Empty reports whether the bundle is missing either half of the pair.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// Device is a tracked unit as returned by GET /api/devices.
type Device struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PositionID int64  `json:"positionId"`
}

// Position is a location fix as returned by GET /api/positions.
// Attribute fields are optional; absence is a valid state, not an error.
type Position struct {
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Speed      float64        `json:"speed"` // knots
	FixTime    string         `json:"fixTime"`
	Attributes map[string]any `json:"attributes"`
}
