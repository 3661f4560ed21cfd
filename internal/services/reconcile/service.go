package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/FreightWatch/internal/cache"
	"github.com/BearBump/FreightWatch/internal/integrations/regulator"
	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	GetTripByExternalNumber(ctx context.Context, externalNumber string) (*models.Trip, error)
	CreateTrip(ctx context.Context, in models.TripCreateInput) (*models.Trip, bool, error)
	AnnulTrip(ctx context.Context, externalNumber string) error
	CreateControlPoint(ctx context.Context, tripID uint64, in models.ControlPointCreateInput) (bool, error)
	ApplyPointAdjustment(ctx context.Context, tripID uint64, code string, fs models.PointFieldSet) error
}

// Service сверяет локальные рейсы с выгрузкой регулятора: новые манифесты
// регистрируются, корректировки применяются, аннулированные гасятся.
type Service struct {
	repo    Repository
	source  regulator.ManifestSource
	cache   cache.BytesCache
	tripTTL time.Duration
}

func New(repo Repository, source regulator.ManifestSource, c cache.BytesCache, tripTTL time.Duration) *Service {
	return &Service{repo: repo, source: source, cache: c, tripTTL: tripTTL}
}

type Result struct {
	Fetched  int      `json:"fetched"`
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Adjusted int      `json:"adjusted"`
	Annulled int      `json:"annulled"`
	Errors   []string `json:"errors,omitempty"`
}

// SyncBatch обрабатывает пачку манифестов. Падение выгрузки — ошибка всего
// вызова; падение одного манифеста или одной точки — строка в Errors,
// остальные идут дальше.
func (s *Service) SyncBatch(ctx context.Context, manifestIDs []string) (Result, error) {
	var res Result

	records, err := s.source.FetchPending(ctx, manifestIDs)
	if err != nil {
		return res, errors.Wrap(err, "fetch pending manifests")
	}
	res.Fetched = len(records)

	for _, rec := range records {
		if err := s.syncOne(ctx, rec, &res); err != nil {
			slog.Error("sync manifest", "manifest", rec.ExternalNumber, "error", err.Error())
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", rec.ExternalNumber, err.Error()))
		}
	}
	return res, nil
}

func (s *Service) syncOne(ctx context.Context, rec regulator.ManifestRecord, res *Result) error {
	if rec.ExternalNumber == "" {
		return errors.New("external_number is required")
	}

	// Корректировка уровня манифеста (аннулирование, перегрузка) не требует
	// создания рейса: она адресует уже существующий.
	if rec.Adjustment != nil {
		return s.applyManifestAdjustment(ctx, rec, res)
	}

	// Кэш — best effort: попадание избавляет от insert-а по известному
	// манифесту, промах или мусор просто ведут в БД.
	if trip, ok := s.cachedTrip(ctx, rec.ExternalNumber); ok {
		res.Existing++
		s.syncPoints(ctx, trip, rec, res)
		return nil
	}

	trip, created, err := s.repo.CreateTrip(ctx, models.TripCreateInput{
		ExternalNumber:      rec.ExternalNumber,
		CarrierTaxID:        rec.CarrierTaxID,
		ConsecutiveNumber:   rec.ConsecutiveNumber,
		VehiclePlate:        rec.VehiclePlate,
		IssueDate:           rec.IssueDate,
		DriverIDType:        rec.DriverIDType,
		DriverIDNumber:      rec.DriverIDNumber,
		MonitoringCompanyID: rec.MonitoringCompanyID,
	})
	if err != nil {
		return errors.Wrap(err, "create trip")
	}
	if created {
		res.Created++
	} else {
		res.Existing++
	}
	s.cacheTrip(ctx, trip)

	s.syncPoints(ctx, trip, rec, res)
	return nil
}

// syncPoints проходит все точки манифеста; падение одной точки уходит в
// res.Errors и не мешает остальным.
func (s *Service) syncPoints(ctx context.Context, trip *models.Trip, rec regulator.ManifestRecord, res *Result) {
	for _, pt := range rec.Points {
		if pt.Adjustment != nil {
			if err := s.applyPointAdjustment(ctx, trip.ID, pt); err != nil {
				s.notePointError(rec.ExternalNumber, pt.Code, err, res)
				continue
			}
			res.Adjusted++
			continue
		}
		if _, err := s.repo.CreateControlPoint(ctx, trip.ID, models.ControlPointCreateInput{
			Code:             pt.Code,
			Lat:              pt.Lat,
			Lon:              pt.Lon,
			AppointmentAt:    pt.AppointmentAt,
			DwellMinutes:     pt.DwellMinutes,
			MunicipalityCode: pt.MunicipalityCode,
		}); err != nil {
			s.notePointError(rec.ExternalNumber, pt.Code, err, res)
		}
	}
}

func (s *Service) notePointError(manifest, pointCode string, err error, res *Result) {
	slog.Error("sync point", "manifest", manifest, "point", pointCode, "error", err.Error())
	res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %s", manifest, pointCode, err.Error()))
}

func (s *Service) cachedTrip(ctx context.Context, externalNumber string) (*models.Trip, bool) {
	if s.cache == nil || s.tripTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, tripKey(externalNumber))
	if err != nil || !ok {
		return nil, false
	}
	var t models.Trip
	if json.Unmarshal(b, &t) != nil || t.ID == 0 {
		return nil, false
	}
	return &t, true
}

func (s *Service) applyManifestAdjustment(ctx context.Context, rec regulator.ManifestRecord, res *Result) error {
	a := rec.Adjustment
	adj, err := models.NewAdjustment(a.Code, a.AppointmentAt, a.MunicipalityCode, a.Lat, a.Lon)
	if err != nil {
		return err
	}

	switch adj.(type) {
	case models.Annul, models.UnplannedTransfer:
		if err := s.repo.AnnulTrip(ctx, rec.ExternalNumber); err != nil {
			return errors.Wrap(err, "annul trip")
		}
		res.Annulled++
		s.dropTripCache(ctx, rec.ExternalNumber)
		return nil
	default:
		// Точечные коды (1-3) на уровне манифеста обязаны нести point_code.
		if a.PointCode == "" {
			return errors.Errorf("adjustment %d requires point_code", a.Code)
		}
		trip, err := s.repo.GetTripByExternalNumber(ctx, rec.ExternalNumber)
		if err != nil {
			return err
		}
		pa, ok := adj.(models.PointAdjustment)
		if !ok {
			return errors.Errorf("adjustment %d is not applicable to a point", a.Code)
		}
		if err := s.repo.ApplyPointAdjustment(ctx, trip.ID, a.PointCode, pa.FieldSet()); err != nil {
			return err
		}
		res.Adjusted++
		return nil
	}
}

func (s *Service) applyPointAdjustment(ctx context.Context, tripID uint64, pt regulator.PointPayload) error {
	a := pt.Adjustment
	adj, err := models.NewAdjustment(a.Code, a.AppointmentAt, a.MunicipalityCode, a.Lat, a.Lon)
	if err != nil {
		return err
	}
	pa, ok := adj.(models.PointAdjustment)
	if !ok {
		return errors.Errorf("adjustment %d is not applicable to a point", a.Code)
	}
	return s.repo.ApplyPointAdjustment(ctx, tripID, pt.Code, pa.FieldSet())
}

func (s *Service) cacheTrip(ctx context.Context, trip *models.Trip) {
	if s.cache == nil || s.tripTTL <= 0 {
		return
	}
	b, err := json.Marshal(trip)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, tripKey(trip.ExternalNumber), b, s.tripTTL); err != nil {
		slog.Warn("cache trip", "manifest", trip.ExternalNumber, "error", err.Error())
	}
}

func (s *Service) dropTripCache(ctx context.Context, externalNumber string) {
	if s.cache == nil || s.tripTTL <= 0 {
		return
	}
	_ = s.cache.Del(ctx, tripKey(externalNumber))
}

func tripKey(externalNumber string) string {
	return fmt.Sprintf("trip:%s", externalNumber)
}
