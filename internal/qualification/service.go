package qualification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/internal/distributors"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

type hierarchy interface {
	Snapshot(ctx context.Context) (*distributors.Tree, error)
}

// Service evaluates qualifications from raw metrics or from stored activity.
type Service interface {
	Evaluate(m Metrics) Result
	ForDistributor(ctx context.Context, distributorID uuid.UUID, month string) (*DistributorQualification, error)
}

// DistributorQualification is a stored distributor's evaluation for a month.
type DistributorQualification struct {
	DistributorID uuid.UUID      `json:"distributor_id"`
	Month         types.MonthKey `json:"month"`
	Metrics       Metrics        `json:"metrics"`
	Result        Result         `json:"result"`
}

// ServiceParams wires the qualification service.
type ServiceParams struct {
	Repository Repository
	Hierarchy  hierarchy
	Logger     *logger.Logger
	Thresholds *Thresholds
	Clock      func() time.Time
}

type service struct {
	repo      Repository
	hierarchy hierarchy
	logg      *logger.Logger
	evaluator *Evaluator
	clock     func() time.Time
}

// NewService validates dependencies and returns the qualification service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("qualification repository required")
	}
	if params.Hierarchy == nil {
		return nil, fmt.Errorf("hierarchy required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	thresholds := DefaultThresholds()
	if params.Thresholds != nil {
		thresholds = *params.Thresholds
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:      params.Repository,
		hierarchy: params.Hierarchy,
		logg:      params.Logger,
		evaluator: NewEvaluator(thresholds),
		clock:     clock,
	}, nil
}

func (s *service) Evaluate(m Metrics) Result {
	return s.evaluator.Evaluate(m)
}

// ForDistributor scores the distributor on the month's sales of its subtree.
// Tenure is measured at the end of the month, or now for the running month.
func (s *service) ForDistributor(ctx context.Context, distributorID uuid.UUID, rawMonth string) (*DistributorQualification, error) {
	month, err := types.ParseMonthKey(rawMonth)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid month key")
	}
	from, to, err := month.Bounds()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid month key")
	}

	tree, err := s.hierarchy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	subtree := tree.Subtree(distributorID)
	if subtree == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
	}

	sellerIDs := make([]uuid.UUID, 0, len(subtree))
	for _, node := range subtree {
		sellerIDs = append(sellerIDs, node.UserID)
	}
	sales, err := s.repo.SalesTotals(ctx, sellerIDs, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate sales")
	}

	asOf := to
	if now := s.clock().UTC(); now.Before(to) {
		asOf = now
	}
	evaluations := s.evaluator.BuildSubtree(tree, distributorID, sales, asOf)
	evaluation := evaluations[distributorID]

	logCtx := s.logg.WithDistributorID(ctx, distributorID.String())
	logCtx = s.logg.WithMonthKey(logCtx, month.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"level":        evaluation.Result.Level.String(),
		"subtree_size": len(subtree),
	})
	s.logg.Debug(logCtx, "qualification.evaluated")

	return &DistributorQualification{
		DistributorID: distributorID,
		Month:         month,
		Metrics:       evaluation.Metrics,
		Result:        evaluation.Result,
	}, nil
}
