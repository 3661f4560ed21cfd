package messages

import "time"

// PointTransition публикуется после каждого персистентного перехода
// контрольной точки. Потребители — аудит и внешние дашборды.
type PointTransition struct {
	TripID         uint64 `json:"trip_id"`
	PointID        uint64 `json:"point_id"`
	ManifestNumber string `json:"manifest_number"`
	PointCode      string `json:"point_code"`

	// "ARRIVED" | "DEPARTED"
	Transition string `json:"transition"`

	Category string `json:"category"`

	OccurredAt time.Time `json:"occurred_at"`
	CheckedAt  time.Time `json:"checked_at"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// SyncRequested — запрос на синхронизацию пачки манифестов из регулятора.
type SyncRequested struct {
	ManifestIDs []string  `json:"manifest_ids"`
	RequestedAt time.Time `json:"requested_at"`
}
