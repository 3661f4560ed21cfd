package regulator

import (
	"context"
	"time"
)

// Виды событий, отправляемых регулятору. SOAP-конверт собирает мост,
// ядро отдаёт только смысловой плоский набор полей.
type EventKind string

const (
	EventEntry       EventKind = "entry"
	EventExitCargo   EventKind = "exit-cargo"
	EventExitTransit EventKind = "exit-transit"
	EventNovelty     EventKind = "novelty"
)

// Коды новостных отчётов регулятора.
const (
	NoveltyAppointmentBreach = 1
	NoveltyProlongedGPSLoss  = 4
)

type Event struct {
	Kind EventKind `json:"kind"`

	NoveltyCode int `json:"novelty_code,omitempty"`

	GPSDeviceID    string `json:"gps_device_id,omitempty"`
	ManifestNumber string `json:"manifest_number"`
	PointCode      string `json:"point_code"`
	VehiclePlate   string `json:"vehicle_plate,omitempty"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	ArrivedAt  *time.Time `json:"arrived_at,omitempty"`
	DepartedAt *time.Time `json:"departed_at,omitempty"`

	// Поля водителя идут только в cargo-событиях.
	DriverIDType   string `json:"driver_id_type,omitempty"`
	DriverIDNumber string `json:"driver_id_number,omitempty"`
}

type Reporter interface {
	ReportEvent(ctx context.Context, ev Event) error
}

// AdjustmentPayload — сырая директива корректировки из выгрузки регулятора.
// Валидируется на границе синхронизации (models.NewAdjustment).
type AdjustmentPayload struct {
	Code             int        `json:"code"`
	PointCode        string     `json:"point_code,omitempty"`
	AppointmentAt    *time.Time `json:"appointment_at,omitempty"`
	MunicipalityCode string     `json:"municipality_code,omitempty"`
	Lat              *float64   `json:"lat,omitempty"`
	Lon              *float64   `json:"lon,omitempty"`
}

type PointPayload struct {
	Code             string     `json:"code"`
	Lat              float64    `json:"lat"`
	Lon              float64    `json:"lon"`
	AppointmentAt    *time.Time `json:"appointment_at,omitempty"`
	DwellMinutes     int32      `json:"dwell_minutes,omitempty"`
	MunicipalityCode string     `json:"municipality_code,omitempty"`

	Adjustment *AdjustmentPayload `json:"adjustment,omitempty"`
}

type ManifestRecord struct {
	ExternalNumber      string     `json:"external_number"`
	CarrierTaxID        string     `json:"carrier_tax_id"`
	ConsecutiveNumber   string     `json:"consecutive_number"`
	VehiclePlate        string     `json:"vehicle_plate"`
	IssueDate           *time.Time `json:"issue_date,omitempty"`
	DriverIDType        string     `json:"driver_id_type,omitempty"`
	DriverIDNumber      string     `json:"driver_id_number,omitempty"`
	MonitoringCompanyID string     `json:"monitoring_company_id,omitempty"`

	Adjustment *AdjustmentPayload `json:"adjustment,omitempty"`

	Points []PointPayload `json:"points,omitempty"`
}

// ManifestSource отдаёт ожидающие синхронизации записи по списку номеров.
type ManifestSource interface {
	FetchPending(ctx context.Context, manifestIDs []string) ([]ManifestRecord, error)
}
