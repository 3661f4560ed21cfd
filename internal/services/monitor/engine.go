package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FreightWatch/internal/broker/messages"
	"github.com/BearBump/FreightWatch/internal/geomatch"
	"github.com/BearBump/FreightWatch/internal/integrations/regulator"
	"github.com/BearBump/FreightWatch/internal/integrations/telemetry"
	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ListActiveTrips(ctx context.Context, limit int) ([]*models.Trip, error)
	ListActivePoints(ctx context.Context, tripID uint64) ([]*models.ControlPoint, error)
	MarkArrived(ctx context.Context, pointID uint64, arrivedAt, watermark time.Time) error
	MarkDeparted(ctx context.Context, pointID uint64, departedAt time.Time) error
	BumpNoTrackAttempts(ctx context.Context, pointID uint64, at time.Time) (int32, error)
	BumpMissAttempts(ctx context.Context, pointID uint64, at time.Time, missDistanceM *float64) (int32, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Engine — движок состояний контрольных точек. Периодический проход:
// рейсы параллелятся ограниченным пулом, точки внутри рейса строго
// последовательно, чтобы ARRIVED всегда фиксировался раньше попытки DEPARTED.
type Engine struct {
	repo      Repository
	telemetry telemetry.Gateway
	reporter  regulator.Reporter
	producer  Producer
	rl        RateLimiter

	topic string

	thresholds Thresholds

	pollInterval         time.Duration
	tripLimit            int
	concurrency          int
	reportLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano  int64
	lastCycleUnixNano  atomic.Int64
	totalTrips         atomic.Int64
	totalPoints        atomic.Int64
	totalTransitions   atomic.Int64
	totalNovelties     atomic.Int64
	totalErrors        atomic.Int64
	inFlight           atomic.Int64
	lastErrorMu        sync.Mutex
	lastError          string
}

func New(repo Repository, tg telemetry.Gateway, reporter regulator.Reporter, producer Producer, rl RateLimiter, topic string) *Engine {
	return &Engine{
		repo: repo, telemetry: tg, reporter: reporter, producer: producer, rl: rl, topic: topic,
		thresholds:           DefaultThresholds(),
		pollInterval:         30 * time.Second,
		tripLimit:            200,
		concurrency:          10,
		reportLimitPerMinute: 60,
		triggerCh:            make(chan struct{}, 1),
		startedAtUnixNano:    time.Now().UTC().UnixNano(),
	}
}

func (e *Engine) WithSettings(pollInterval time.Duration, tripLimit, concurrency int, reportPerMin int64) *Engine {
	if pollInterval > 0 {
		e.pollInterval = pollInterval
	}
	if tripLimit > 0 {
		e.tripLimit = tripLimit
	}
	if concurrency > 0 {
		e.concurrency = concurrency
	}
	if reportPerMin > 0 {
		e.reportLimitPerMinute = reportPerMin
	}
	return e
}

func (e *Engine) WithThresholds(cfg Thresholds) *Engine {
	e.thresholds = NewThresholds(cfg)
	return e
}

// Trigger forces an immediate evaluation pass (best-effort, non-blocking).
func (e *Engine) Trigger() {
	select {
	case e.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt        time.Time  `json:"startedAt"`
	LastCycleAt      *time.Time `json:"lastCycleAt,omitempty"`
	TotalTrips       int64      `json:"totalTrips"`
	TotalPoints      int64      `json:"totalPoints"`
	TotalTransitions int64      `json:"totalTransitions"`
	TotalNovelties   int64      `json:"totalNovelties"`
	TotalErrors      int64      `json:"totalErrors"`
	InFlight         int64      `json:"inFlight"`
	LastError        string     `json:"lastError,omitempty"`
}

func (e *Engine) Stats() Stats {
	st := Stats{
		StartedAt:        time.Unix(0, e.startedAtUnixNano).UTC(),
		TotalTrips:       e.totalTrips.Load(),
		TotalPoints:      e.totalPoints.Load(),
		TotalTransitions: e.totalTransitions.Load(),
		TotalNovelties:   e.totalNovelties.Load(),
		TotalErrors:      e.totalErrors.Load(),
		InFlight:         e.inFlight.Load(),
	}
	if n := e.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	e.lastErrorMu.Lock()
	st.LastError = e.lastError
	e.lastErrorMu.Unlock()
	return st
}

func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(e.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.runOnce(ctx)
		case <-e.triggerCh:
			e.runOnce(ctx)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	e.lastCycleUnixNano.Store(now.UnixNano())

	trips, err := e.repo.ListActiveTrips(ctx, e.tripLimit)
	if err != nil {
		slog.Error("list active trips", "error", err.Error())
		e.noteError(err)
		return
	}
	e.totalTrips.Add(int64(len(trips)))

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for _, tr := range trips {
		sem <- struct{}{}
		wg.Add(1)
		trCopy := tr
		e.inFlight.Add(1)
		go func() {
			defer func() {
				e.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			e.processTrip(ctx, trCopy)
		}()
	}
	wg.Wait()
}

// processTrip обходит точки рейса по порядку кода. Ошибка одной точки
// логируется и не трогает соседние.
func (e *Engine) processTrip(ctx context.Context, trip *models.Trip) {
	points, err := e.repo.ListActivePoints(ctx, trip.ID)
	if err != nil {
		slog.Error("list active points", "trip_id", trip.ID, "error", err.Error())
		e.noteError(err)
		return
	}

	for _, p := range points {
		e.totalPoints.Add(1)
		if err := e.processPoint(ctx, trip, p); err != nil {
			e.noteError(err)
			slog.Error("process control point",
				"trip_id", trip.ID, "point_id", p.ID, "code", p.Code, "error", err.Error())
		}
	}
}

func (e *Engine) processPoint(ctx context.Context, trip *models.Trip, p *models.ControlPoint) error {
	switch p.State {
	case models.PointStatePending:
		return e.detectEntry(ctx, trip, p)
	case models.PointStateArrived:
		return e.detectExit(ctx, trip, p)
	default:
		// DEPARTED терминален, сюда попадать не должен: стор его отфильтровывает.
		return nil
	}
}

func (e *Engine) detectEntry(ctx context.Context, trip *models.Trip, p *models.ControlPoint) error {
	now := time.Now().UTC()

	samples, err := e.telemetry.Fetch(ctx, trip.ID, p.TrackWatermark)
	if err != nil {
		return errors.Wrap(err, "fetch telemetry")
	}

	if len(samples) == 0 {
		n, err := e.repo.BumpNoTrackAttempts(ctx, p.ID, now)
		if err != nil {
			return errors.Wrap(err, "bump no-track attempts")
		}
		if n == e.thresholds.NoTrackWarnAttempts {
			slog.Warn("low GPS signal for control point",
				"trip_id", trip.ID, "code", p.Code, "attempts", n)
		}
		if n == e.thresholds.NoTrackNoveltyAttempts {
			e.sendNovelty(ctx, trip, p, regulator.NoveltyProlongedGPSLoss, nil)
		}
		return nil
	}

	match, err := geomatch.Nearest(geomatch.Coordinate{Lat: p.Lat, Lon: p.Lon}, samples)
	if err != nil {
		// Кривая координата — не ретраим, точка пропускается до корректировки.
		return errors.Wrap(err, "nearest sample")
	}
	nearest := samples[match.Index]

	// Контроль назначенного времени: только для точек погрузки/разгрузки,
	// пока точка ещё PENDING, до перехода в ARRIVED в этом же проходе.
	if p.AppointmentAt != nil && nearest.CapturedAt.After(*p.AppointmentAt) {
		if gap := nearest.CapturedAt.Sub(*p.AppointmentAt); gap >= e.thresholds.AppointmentBreachMinGap {
			e.sendNovelty(ctx, trip, p, regulator.NoveltyAppointmentBreach, &nearest)
		}
	}

	if match.DistanceMeters > e.thresholds.GeofenceToleranceM {
		d := match.DistanceMeters
		if _, err := e.repo.BumpMissAttempts(ctx, p.ID, now, &d); err != nil {
			return errors.Wrap(err, "bump miss attempts")
		}
		return nil
	}

	arrivedAt := nearest.CapturedAt.UTC()
	if err := e.repo.MarkArrived(ctx, p.ID, arrivedAt, arrivedAt); err != nil {
		return errors.Wrap(err, "mark arrived")
	}
	e.totalTransitions.Add(1)

	e.report(ctx, regulator.Event{
		Kind:           regulator.EventEntry,
		GPSDeviceID:    nearest.DeviceID,
		ManifestNumber: trip.ExternalNumber,
		PointCode:      p.Code,
		VehiclePlate:   plateOf(trip, nearest),
		Lat:            p.Lat,
		Lon:            p.Lon,
		ArrivedAt:      &arrivedAt,
	})
	e.publishTransition(ctx, trip, p, "ARRIVED", arrivedAt, match.DistanceMeters)
	return nil
}

func (e *Engine) detectExit(ctx context.Context, trip *models.Trip, p *models.ControlPoint) error {
	now := time.Now().UTC()
	if p.ArrivedAt == nil {
		return errors.Errorf("point %d is ARRIVED without arrival timestamp", p.ID)
	}

	since := *p.ArrivedAt
	if p.TrackWatermark != nil && p.TrackWatermark.After(since) {
		since = *p.TrackWatermark
	}

	samples, err := e.telemetry.Fetch(ctx, trip.ID, &since)
	if err != nil {
		return errors.Wrap(err, "fetch telemetry")
	}

	ref := geomatch.Coordinate{Lat: p.Lat, Lon: p.Lon}
	var departed *models.GPSSample
	for i := range samples {
		s := samples[i]
		if !s.CapturedAt.After(*p.ArrivedAt) {
			continue
		}
		if geomatch.DistanceMeters(ref, geomatch.Coordinate{Lat: s.Lat, Lon: s.Lon}) >= e.thresholds.GeofenceToleranceM {
			// Сэмплы идут по возрастанию времени: первый подходящий — самый ранний.
			departed = &s
			break
		}
	}

	if departed == nil {
		if _, err := e.repo.BumpMissAttempts(ctx, p.ID, now, nil); err != nil {
			return errors.Wrap(err, "bump miss attempts")
		}
		return nil
	}

	departedAt := departed.CapturedAt.UTC()
	if err := e.repo.MarkDeparted(ctx, p.ID, departedAt); err != nil {
		return errors.Wrap(err, "mark departed")
	}
	e.totalTransitions.Add(1)

	ev := regulator.Event{
		Kind:           regulator.EventExitTransit,
		GPSDeviceID:    departed.DeviceID,
		ManifestNumber: trip.ExternalNumber,
		PointCode:      p.Code,
		VehiclePlate:   plateOf(trip, *departed),
		Lat:            p.Lat,
		Lon:            p.Lon,
		ArrivedAt:      p.ArrivedAt,
		DepartedAt:     &departedAt,
	}
	// Выход из точки погрузки/разгрузки — cargo-отчёт, с полями водителя.
	if p.Category == models.PointCategoryCargo {
		ev.Kind = regulator.EventExitCargo
		ev.DriverIDType = trip.DriverIDType
		ev.DriverIDNumber = trip.DriverIDNumber
	}
	e.report(ctx, ev)
	e.publishTransition(ctx, trip, p, "DEPARTED", departedAt, 0)
	return nil
}

// report отправляет событие регулятору под rate limit. Неудача — только лог:
// продвижение состояния от отчёта не зависит.
func (e *Engine) report(ctx context.Context, ev regulator.Event) {
	if e.reporter == nil {
		return
	}
	now := time.Now().UTC()

	if e.rl != nil && e.reportLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:regulator:%s", now.Format("200601021504"))
		allowed, n, err := e.rl.Allow(ctx, minuteKey, e.reportLimitPerMinute, 70*time.Second)
		if err != nil {
			slog.Error("regulator rate limit check", "error", err.Error())
		} else if !allowed {
			// Квота минуты выбрана: притормозим, чтобы не душить мост.
			slog.Warn("regulator rate limit exceeded", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	if err := e.reporter.ReportEvent(ctx, ev); err != nil {
		e.noteError(err)
		slog.Error("report regulator event",
			"kind", string(ev.Kind), "manifest", ev.ManifestNumber, "point", ev.PointCode, "error", err.Error())
	}
}

func (e *Engine) sendNovelty(ctx context.Context, trip *models.Trip, p *models.ControlPoint, code int, sample *models.GPSSample) {
	e.totalNovelties.Add(1)
	ev := regulator.Event{
		Kind:           regulator.EventNovelty,
		NoveltyCode:    code,
		ManifestNumber: trip.ExternalNumber,
		PointCode:      p.Code,
		VehiclePlate:   trip.VehiclePlate,
		Lat:            p.Lat,
		Lon:            p.Lon,
	}
	if sample != nil {
		ev.GPSDeviceID = sample.DeviceID
		ev.VehiclePlate = plateOf(trip, *sample)
	}
	e.report(ctx, ev)
}

func (e *Engine) publishTransition(ctx context.Context, trip *models.Trip, p *models.ControlPoint, transition string, occurredAt time.Time, distance float64) {
	if e.producer == nil {
		return
	}
	msg := messages.PointTransition{
		TripID:         trip.ID,
		PointID:        p.ID,
		ManifestNumber: trip.ExternalNumber,
		PointCode:      p.Code,
		Transition:     transition,
		Category:       p.Category,
		OccurredAt:     occurredAt,
		CheckedAt:      time.Now().UTC(),
		Lat:            p.Lat,
		Lon:            p.Lon,
		DistanceMeters: distance,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal point transition", "error", err.Error())
		return
	}
	key := []byte(fmt.Sprintf("%d", p.ID))
	if err := e.producer.Publish(ctx, e.topic, key, b); err != nil {
		e.noteError(err)
		slog.Error("publish point transition", "point_id", p.ID, "error", err.Error())
	}
}

func (e *Engine) noteError(err error) {
	e.totalErrors.Add(1)
	e.lastErrorMu.Lock()
	e.lastError = err.Error()
	e.lastErrorMu.Unlock()
}

func plateOf(trip *models.Trip, s models.GPSSample) string {
	if s.VehiclePlate != "" {
		return s.VehiclePlate
	}
	return trip.VehiclePlate
}
