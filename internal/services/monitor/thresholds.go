package monitor

import "time"

// Thresholds — именованные пороги движка. Нули заменяются дефолтами,
// чтобы конфиг мог задавать только то, что отличается.
type Thresholds struct {
	// Радиус геозоны. Тот же порог служит и признаком "ещё внутри"
	// на входе, и признаком "уже покинул" на выходе.
	GeofenceToleranceM float64 // default: 1 meter

	// Пороги счётчика попыток без телеметрии вообще.
	NoTrackWarnAttempts    int32 // default: 5 — предупреждение в лог
	NoTrackNoveltyAttempts int32 // default: 10 — новость "потеря GPS" регулятору

	// Минимальный разрыв между назначенным временем и ближайшим сэмплом,
	// после которого отправляется новость "срыв назначенного времени".
	AppointmentBreachMinGap time.Duration // default: 24h
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		GeofenceToleranceM:      1,
		NoTrackWarnAttempts:     5,
		NoTrackNoveltyAttempts:  10,
		AppointmentBreachMinGap: 24 * time.Hour,
	}
}

func NewThresholds(cfg Thresholds) Thresholds {
	def := DefaultThresholds()
	if cfg.GeofenceToleranceM <= 0 {
		cfg.GeofenceToleranceM = def.GeofenceToleranceM
	}
	if cfg.NoTrackWarnAttempts <= 0 {
		cfg.NoTrackWarnAttempts = def.NoTrackWarnAttempts
	}
	if cfg.NoTrackNoveltyAttempts <= 0 {
		cfg.NoTrackNoveltyAttempts = def.NoTrackNoveltyAttempts
	}
	if cfg.NoTrackNoveltyAttempts < cfg.NoTrackWarnAttempts {
		cfg.NoTrackNoveltyAttempts = cfg.NoTrackWarnAttempts
	}
	if cfg.AppointmentBreachMinGap <= 0 {
		cfg.AppointmentBreachMinGap = def.AppointmentBreachMinGap
	}
	return cfg
}
