package domain

// TurnRecord is a single persisted triage turn (audit trail only; the
// dispatcher never reads these back).
type TurnRecord struct {
	PK             string
	SK             string
	ConversationID string
	UserID         string
	Message        string
	Label          string
	Reply          string
	Status         string
	TTL            int64
}

// ConversationMeta stores per-conversation bookkeeping alongside the turns.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	UserID         string
	LastActivity   string
	TTL            int64
}
