package models

import (
	"time"

	"github.com/pkg/errors"
)

// Коды корректировок регулятора.
type AdjustmentCode int

const (
	AdjustReschedule         AdjustmentCode = 1 // новая дата/время прибытия
	AdjustRelocate           AdjustmentCode = 2 // новый муниципалитет и координата
	AdjustRescheduleRelocate AdjustmentCode = 3 // и то и другое
	AdjustAnnul              AdjustmentCode = 4 // аннулирование манифеста
	AdjustUnplannedTransfer  AdjustmentCode = 5 // незапланированная перегрузка
)

// Adjustment — закрытое размеченное объединение: по варианту на код,
// каждый несёт ровно те поля, которые его код использует.
type Adjustment interface {
	Code() AdjustmentCode
}

// PointAdjustment корректирует одну контрольную точку. FieldSet считает новый
// набор полей чистой функцией; персистентность подключается отдельно.
type PointAdjustment interface {
	Adjustment
	FieldSet() PointFieldSet
}

// PointFieldSet — частичное обновление точки. nil = поле не трогаем.
type PointFieldSet struct {
	AppointmentAt    *time.Time
	MunicipalityCode *string
	Lat              *float64
	Lon              *float64
}

type Reschedule struct {
	AppointmentAt time.Time
}

func (Reschedule) Code() AdjustmentCode { return AdjustReschedule }

func (a Reschedule) FieldSet() PointFieldSet {
	t := a.AppointmentAt
	return PointFieldSet{AppointmentAt: &t}
}

type Relocate struct {
	MunicipalityCode string
	Lat              float64
	Lon              float64
}

func (Relocate) Code() AdjustmentCode { return AdjustRelocate }

func (a Relocate) FieldSet() PointFieldSet {
	m, lat, lon := a.MunicipalityCode, a.Lat, a.Lon
	return PointFieldSet{MunicipalityCode: &m, Lat: &lat, Lon: &lon}
}

type RescheduleRelocate struct {
	AppointmentAt    time.Time
	MunicipalityCode string
	Lat              float64
	Lon              float64
}

func (RescheduleRelocate) Code() AdjustmentCode { return AdjustRescheduleRelocate }

func (a RescheduleRelocate) FieldSet() PointFieldSet {
	t, m, lat, lon := a.AppointmentAt, a.MunicipalityCode, a.Lat, a.Lon
	return PointFieldSet{AppointmentAt: &t, MunicipalityCode: &m, Lat: &lat, Lon: &lon}
}

// Annul помечает манифест аннулированным. Действует на весь рейс.
type Annul struct{}

func (Annul) Code() AdjustmentCode { return AdjustAnnul }

// UnplannedTransfer — отдельный вариант, хотя сейчас ведёт себя как Annul.
// Регулятор не описал различий; когда опишет — разойдутся здесь.
type UnplannedTransfer struct{}

func (UnplannedTransfer) Code() AdjustmentCode { return AdjustUnplannedTransfer }

// NewAdjustment валидирует сырые поля платежа регулятора на границе
// синхронизации и собирает вариант.
func NewAdjustment(code int, appointmentAt *time.Time, municipalityCode string, lat, lon *float64) (Adjustment, error) {
	switch AdjustmentCode(code) {
	case AdjustReschedule:
		if appointmentAt == nil {
			return nil, errors.New("adjustment 1 requires appointment timestamp")
		}
		return Reschedule{AppointmentAt: *appointmentAt}, nil
	case AdjustRelocate:
		if municipalityCode == "" || lat == nil || lon == nil {
			return nil, errors.New("adjustment 2 requires municipality code and coordinate")
		}
		return Relocate{MunicipalityCode: municipalityCode, Lat: *lat, Lon: *lon}, nil
	case AdjustRescheduleRelocate:
		if appointmentAt == nil || municipalityCode == "" || lat == nil || lon == nil {
			return nil, errors.New("adjustment 3 requires appointment timestamp, municipality code and coordinate")
		}
		return RescheduleRelocate{AppointmentAt: *appointmentAt, MunicipalityCode: municipalityCode, Lat: *lat, Lon: *lon}, nil
	case AdjustAnnul:
		return Annul{}, nil
	case AdjustUnplannedTransfer:
		return UnplannedTransfer{}, nil
	default:
		return nil, errors.Errorf("unknown adjustment code %d", code)
	}
}
