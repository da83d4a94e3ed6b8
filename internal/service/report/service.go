// Package report aggregates revenue and session activity into time series.
package report

import (
	"context"
	"time"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

// MaxRangeDays caps a single report request
const MaxRangeDays = 731

type Service struct {
	repos     repository.Repositories
	threshold int
}

func NewService(repos repository.Repositories, monthlyThresholdDays int) *Service {
	if monthlyThresholdDays <= 0 {
		monthlyThresholdDays = DefaultMonthlyThreshold
	}
	return &Service{repos: repos, threshold: monthlyThresholdDays}
}

type period struct {
	from, to         model.Date
	prevFrom, prevTo model.Date
	loc              *time.Location
	scope            model.ClinicScope
}

// bounds returns the instants [start, end) covering the days [from, to]
func bounds(from, to model.Date, loc *time.Location) (time.Time, time.Time) {
	return from.In(loc), to.AddDays(1).In(loc)
}

func (s *Service) prepare(ctx context.Context, tc *tenant.Context, from, to model.Date) (*period, error) {
	if err := permission.Require(tc, permission.ReportsView); err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() {
		return nil, errors.InvalidInput("from and to are required", nil)
	}
	if to.Before(from) {
		return nil, errors.InvalidInput("to must not be before from", nil)
	}
	days := from.DaysUntil(to) + 1
	if days > MaxRangeDays {
		return nil, errors.InvalidInput("report range is too long", nil)
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}
	clinic, err := s.repos.Clinics().Get(ctx, scope.ClinicID())
	if err != nil {
		return nil, repository.Translate(err, errors.KindClinicNotFound)
	}
	return &period{
		from:     from,
		to:       to,
		prevFrom: from.AddDays(-days),
		prevTo:   from.AddDays(-1),
		loc:      clinic.Location(),
		scope:    scope,
	}, nil
}

func (s *Service) build(p *period, current, previous []model.Point) *model.Report {
	series := BuildSeries(current, p.from, p.to, p.loc, s.threshold)
	prev := BuildSeries(previous, p.prevFrom, p.prevTo, p.loc, s.threshold)
	cur, before := total(series), total(prev)
	return &model.Report{
		Series:        series,
		Total:         cur,
		PreviousTotal: before,
		GrowthRate:    GrowthRate(cur, before),
	}
}

// Revenue sums payments by paid_at
func (s *Service) Revenue(ctx context.Context, tc *tenant.Context, from, to model.Date) (*model.Report, error) {
	p, err := s.prepare(ctx, tc, from, to)
	if err != nil {
		return nil, err
	}
	current, err := s.payments(ctx, p.scope, p.from, p.to, p.loc)
	if err != nil {
		return nil, err
	}
	previous, err := s.payments(ctx, p.scope, p.prevFrom, p.prevTo, p.loc)
	if err != nil {
		return nil, err
	}
	return s.build(p, current, previous), nil
}

// Sessions counts session notes by creation time
func (s *Service) Sessions(ctx context.Context, tc *tenant.Context, from, to model.Date) (*model.Report, error) {
	p, err := s.prepare(ctx, tc, from, to)
	if err != nil {
		return nil, err
	}
	current, err := s.sessions(ctx, p.scope, p.from, p.to, p.loc)
	if err != nil {
		return nil, err
	}
	previous, err := s.sessions(ctx, p.scope, p.prevFrom, p.prevTo, p.loc)
	if err != nil {
		return nil, err
	}
	return s.build(p, current, previous), nil
}

func (s *Service) payments(ctx context.Context, scope model.ClinicScope, from, to model.Date, loc *time.Location) ([]model.Point, error) {
	start, end := bounds(from, to, loc)
	rows, err := s.repos.Payments().ListInRange(ctx, scope, start, end)
	if err != nil {
		return nil, errors.StorageUnavailable(err)
	}
	points := make([]model.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, model.Point{At: r.PaidAt, Value: r.Amount})
	}
	return points, nil
}

func (s *Service) sessions(ctx context.Context, scope model.ClinicScope, from, to model.Date, loc *time.Location) ([]model.Point, error) {
	start, end := bounds(from, to, loc)
	rows, err := s.repos.Sessions().ListInRange(ctx, scope, start, end)
	if err != nil {
		return nil, errors.StorageUnavailable(err)
	}
	points := make([]model.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, model.Point{At: r.CreatedAt, Value: 1})
	}
	return points, nil
}
