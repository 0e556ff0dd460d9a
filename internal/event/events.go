package event

const (
	TypeReserved  = "inventory.reserved.v1"
	TypeCommitted = "inventory.committed.v1"
	TypeReleased  = "inventory.released.v1"
)

type ReservedPayload struct {
	ReservationID  string `json:"reservationId"`
	SKUID          string `json:"skuId"`
	Quantity       int64  `json:"quantity"`
	ReservedBy     string `json:"reservedBy"`
	Strategy       string `json:"strategy"`
	AvailableStock int64  `json:"availableStock"`
}

type CommittedPayload struct {
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId,omitempty"`
}

type ReleasedPayload struct {
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason"`
}

// TopicMap resolves the bus topic for each event type.
type TopicMap struct {
	Reserved  string
	Committed string
	Released  string
}

func (m TopicMap) For(eventType string) string {
	switch eventType {
	case TypeReserved:
		return m.Reserved
	case TypeCommitted:
		return m.Committed
	case TypeReleased:
		return m.Released
	}
	return ""
}
