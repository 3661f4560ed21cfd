package models

import "time"

// Состояния контрольной точки. Только вперёд: PENDING -> ARRIVED -> DEPARTED.
const (
	PointStatePending  int16 = 0
	PointStateArrived  int16 = 1
	PointStateDeparted int16 = 2
)

// Категория точки фиксируется при создании: точка с назначенным временем
// прибытия — погрузка/разгрузка ("cargo"), без него — транзитный чекпоинт.
const (
	PointCategoryCargo   = "CARGO"
	PointCategoryTransit = "TRANSIT"
)

// Trip — один рейс (манифест регулятора). external_number уникален глобально,
// внутренний ID назначается один раз при создании.
type Trip struct {
	ID                  uint64
	ExternalNumber      string
	CarrierTaxID        string
	ConsecutiveNumber   string
	VehiclePlate        string
	IssueDate           *time.Time
	DriverIDType        string
	DriverIDNumber      string
	MonitoringCompanyID string
	Annulled            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type ControlPoint struct {
	ID       uint64
	TripID   uint64
	Code     string
	Lat      float64
	Lon      float64
	Category string

	AppointmentAt    *time.Time
	DwellMinutes     int32
	MunicipalityCode string

	State      int16
	ArrivedAt  *time.Time
	DepartedAt *time.Time

	// Последний обработанный timestamp телеметрии для этой точки.
	TrackWatermark *time.Time

	AttemptsWithTracks    int32
	AttemptsWithoutTracks int32
	LastAttemptAt         *time.Time
	LastMissDistanceM     *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GPSSample — одна запись телеметрии. Источник владеет данными, мы только читаем.
type GPSSample struct {
	Lat          float64
	Lon          float64
	CapturedAt   time.Time
	DeviceID     string
	VehiclePlate string
}

type TripCreateInput struct {
	ExternalNumber      string
	CarrierTaxID        string
	ConsecutiveNumber   string
	VehiclePlate        string
	IssueDate           *time.Time
	DriverIDType        string
	DriverIDNumber      string
	MonitoringCompanyID string
}

type ControlPointCreateInput struct {
	Code             string
	Lat              float64
	Lon              float64
	AppointmentAt    *time.Time
	DwellMinutes     int32
	MunicipalityCode string
}

// Category выводится один раз на границе создания, дальше по nullability
// никто не гадает.
func (in ControlPointCreateInput) Category() string {
	if in.AppointmentAt != nil {
		return PointCategoryCargo
	}
	return PointCategoryTransit
}
