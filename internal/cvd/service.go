package cvd

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

// Service exposes the CVD grid and monthly computations to the API.
type Service interface {
	Tiers() []CommissionTier
	Simulate(products []enums.ProductType) MonthlyCommissionResult
	SellerMonth(ctx context.Context, sellerID uuid.UUID, month types.MonthKey) (*SellerMonthResult, error)
}

// SellerMonthResult is the monthly CVD outcome for a stored seller.
type SellerMonthResult struct {
	SellerID uuid.UUID      `json:"seller_id"`
	Month    types.MonthKey `json:"month"`
	MonthlyCommissionResult
}

// ServiceParams wires the CVD service.
type ServiceParams struct {
	Repository Repository
	Table      *TierTable
	Logger     *logger.Logger
	Metrics    *metrics.CommissionMetrics
}

type service struct {
	repo    Repository
	table   *TierTable
	logg    *logger.Logger
	metrics *metrics.CommissionMetrics
}

// NewService builds the CVD service. The default grid is used when no table is given.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cvd repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	table := params.Table
	if table == nil {
		table = DefaultTierTable()
	}
	return &service{
		repo:    params.Repository,
		table:   table,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) Tiers() []CommissionTier {
	return s.table.Tiers()
}

func (s *service) Simulate(products []enums.ProductType) MonthlyCommissionResult {
	sales := make([]SaleInput, 0, len(products))
	for _, product := range products {
		sales = append(sales, SaleInput{ProductType: product})
	}
	return s.table.CalculateMonth(sales)
}

func (s *service) SellerMonth(ctx context.Context, sellerID uuid.UUID, month types.MonthKey) (*SellerMonthResult, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	from, to, err := month.Bounds()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid month key")
	}

	exists, err := s.repo.SellerExists(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup seller")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}

	rows, err := s.repo.ListSellerSales(ctx, sellerID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller sales")
	}

	sales := make([]SaleInput, 0, len(rows))
	for _, row := range rows {
		sales = append(sales, SaleInput{ProductType: row.ProductType})
	}
	result := s.table.CalculateMonth(sales)

	if result.UnknownProductSales > 0 {
		logCtx := s.logg.WithSellerID(ctx, sellerID.String())
		logCtx = s.logg.WithMonthKey(logCtx, month.String())
		logCtx = s.logg.WithField(logCtx, "unknown_product_sales", result.UnknownProductSales)
		s.logg.Warn(logCtx, "cvd.unknown_product_sales")
		s.metrics.AddUnknownProductSales(result.UnknownProductSales)
	}

	return &SellerMonthResult{
		SellerID:                sellerID,
		Month:                   month,
		MonthlyCommissionResult: result,
	}, nil
}
