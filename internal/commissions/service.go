package commissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/payloads"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

const tracerName = "github.com/vendeo/vendeo-backend/internal/commissions"

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type hierarchy interface {
	AscendantChain(ctx context.Context, id uuid.UUID) ([]distributors.DistributorDTO, error)
}

// Service propagates sale commissions up the hierarchy and moves them through
// their payout lifecycle.
type Service interface {
	Propagate(ctx context.Context, input PropagateInput) ([]TransactionDTO, error)
	ValidateMonthly(ctx context.Context, distributorID uuid.UUID, month string) (*TransitionResult, error)
	MarkMonthlyPaid(ctx context.Context, distributorID uuid.UUID, month string) (*TransitionResult, error)
	ListMonthly(ctx context.Context, distributorID uuid.UUID, month string) (*MonthlyStatement, error)
}

// ServiceParams wires the commission service.
type ServiceParams struct {
	Repository Repository
	Hierarchy  hierarchy
	TxRunner   txRunner
	Logger     *logger.Logger
	Metrics    *metrics.CommissionMetrics
	Tracer     trace.Tracer
	Clock      func() time.Time
	// Outbox receives commission events; nil disables them.
	Outbox outbox.Emitter
}

type service struct {
	repo      Repository
	hierarchy hierarchy
	tx        txRunner
	logg      *logger.Logger
	metrics   *metrics.CommissionMetrics
	tracer    trace.Tracer
	clock     func() time.Time
	outbox    outbox.Emitter
}

// NewService validates dependencies and returns the commission service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if params.Hierarchy == nil {
		return nil, fmt.Errorf("hierarchy required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	tracer := params.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:      params.Repository,
		hierarchy: params.Hierarchy,
		tx:        params.TxRunner,
		logg:      params.Logger,
		metrics:   params.Metrics,
		tracer:    tracer,
		clock:     clock,
		outbox:    params.Outbox,
	}, nil
}

// Propagate records one transaction per ascendant of the client's seller that
// has an active rule for its level. Sellers outside the program yield nothing.
func (s *service) Propagate(ctx context.Context, input PropagateInput) ([]TransactionDTO, error) {
	ctx, span := s.tracer.Start(ctx, "commissions.propagate",
		trace.WithAttributes(
			attribute.String("client.id", input.ClientID.String()),
			attribute.String("product.type", input.ProductType.String()),
		),
	)
	defer span.End()

	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id is required")
	}
	if strings.TrimSpace(input.ProductType.String()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product type is required")
	}
	if input.SaleAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale amount must not be negative")
	}

	origin, err := s.resolveDistributor(ctx, input.ClientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve distributor")
		return nil, err
	}
	if origin == nil {
		span.SetAttributes(attribute.Bool("propagation.skipped", true))
		return []TransactionDTO{}, nil
	}

	chain, err := s.hierarchy.AscendantChain(ctx, origin.ID)
	if err != nil {
		return nil, err
	}
	rules, err := s.repo.ActiveRules(ctx, input.ProductType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rules")
	}

	month := types.MonthKeyOf(s.clock())
	rows := make([]models.CommissionTransaction, 0, len(chain))
	for _, ascendant := range chain {
		rule, ok := rules[ascendant.Level]
		if !ok {
			continue
		}
		amount := input.SaleAmount.Mul(rule.Rate).Div(hundred).Round(2)
		if !amount.IsPositive() {
			continue
		}
		rows = append(rows, models.CommissionTransaction{
			DistributorID: ascendant.ID,
			ClientID:      input.ClientID,
			ProductType:   input.ProductType,
			SaleAmount:    input.SaleAmount,
			Amount:        amount,
			Rate:          rule.Rate,
			Level:         ascendant.Level,
			MonthKey:      month.String(),
			Status:        enums.CommissionStatusCalculee,
		})
	}

	if len(rows) > 0 {
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).CreateTransactions(ctx, rows); err != nil {
				return err
			}
			for _, row := range rows {
				if err := s.emit(ctx, tx, enums.EventCommissionRecorded, enums.AggregateCommissionTransaction, row.ID, payloads.CommissionRecordedEvent{
					TransactionID: row.ID,
					DistributorID: row.DistributorID,
					ClientID:      row.ClientID,
					ProductType:   row.ProductType,
					SaleAmount:    row.SaleAmount,
					Amount:        row.Amount,
					Rate:          row.Rate,
					Level:         row.Level,
					MonthKey:      row.MonthKey,
				}); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist transactions")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist commission transactions")
		}
	}

	out := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		s.metrics.IncTransactionCreated(row.Level)
		out = append(out, FromModel(row))
	}
	span.SetAttributes(
		attribute.Int("chain.length", len(chain)),
		attribute.Int("transactions.created", len(out)),
	)

	logCtx := s.logg.WithDistributorID(ctx, origin.ID.String())
	logCtx = s.logg.WithMonthKey(logCtx, month.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"client_id":    input.ClientID.String(),
		"product_type": input.ProductType.String(),
		"transactions": len(out),
	})
	s.logg.Info(logCtx, "commissions.propagated")
	return out, nil
}

// resolveDistributor follows client -> code_vendeur -> seller -> distributor.
// A nil result without error means the sale is outside the MLM program.
func (s *service) resolveDistributor(ctx context.Context, clientID uuid.UUID) (*models.Distributor, error) {
	client, err := s.repo.FindClient(ctx, clientID)
	if err != nil {
		return nil, skipOnMissing(err, "lookup client")
	}
	if client.SellerCode == nil || strings.TrimSpace(*client.SellerCode) == "" {
		return nil, nil
	}
	seller, err := s.repo.FindSellerByReferralCode(ctx, strings.TrimSpace(*client.SellerCode))
	if err != nil {
		return nil, skipOnMissing(err, "lookup seller")
	}
	distributor, err := s.repo.FindDistributorByUserID(ctx, seller.ID)
	if err != nil {
		return nil, skipOnMissing(err, "lookup distributor")
	}
	return distributor, nil
}

func skipOnMissing(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func (s *service) ValidateMonthly(ctx context.Context, distributorID uuid.UUID, month string) (*TransitionResult, error) {
	return s.transition(ctx, distributorID, month, enums.CommissionStatusValidee)
}

func (s *service) MarkMonthlyPaid(ctx context.Context, distributorID uuid.UUID, month string) (*TransitionResult, error) {
	return s.transition(ctx, distributorID, month, enums.CommissionStatusPayee)
}

func (s *service) transition(ctx context.Context, distributorID uuid.UUID, rawMonth string, to enums.CommissionStatus) (*TransitionResult, error) {
	if distributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor id is required")
	}
	month, err := types.ParseMonthKey(rawMonth)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid month key")
	}
	from, ok := to.Previous()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("no transition into %s", to))
	}
	if err := s.requireDistributor(ctx, distributorID); err != nil {
		return nil, err
	}

	var updated int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.TransitionStatus(ctx, distributorID, month, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update commission status")
		}
		updated = n
		if n == 0 || s.outbox == nil {
			return nil
		}
		rows, err := repo.ListMonthly(ctx, distributorID, month)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commission transactions")
		}
		total := decimal.Zero
		for _, row := range rows {
			if row.Status == to {
				total = total.Add(row.Amount)
			}
		}
		return s.emit(ctx, tx, monthEventType(to), enums.AggregateDistributor, distributorID, payloads.CommissionMonthEvent{
			DistributorID: distributorID,
			MonthKey:      month.String(),
			Status:        to,
			Updated:       n,
			Total:         total,
			TransitionAt:  s.clock().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddStatusTransitions(to.String(), updated)

	logCtx := s.logg.WithDistributorID(ctx, distributorID.String())
	logCtx = s.logg.WithMonthKey(logCtx, month.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"status": to.String(), "updated": updated})
	s.logg.Info(logCtx, "commissions.status_transition")

	return &TransitionResult{
		DistributorID: distributorID,
		Month:         month,
		Status:        to,
		Updated:       updated,
	}, nil
}

func (s *service) requireDistributor(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.FindDistributorByID(ctx, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup distributor")
	}
	return nil
}

func monthEventType(status enums.CommissionStatus) enums.OutboxEventType {
	if status == enums.CommissionStatusPayee {
		return enums.EventCommissionMonthPaid
	}
	return enums.EventCommissionMonthValidated
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, data any) error {
	if s.outbox == nil {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue commission event")
	}
	return nil
}

func (s *service) ListMonthly(ctx context.Context, distributorID uuid.UUID, rawMonth string) (*MonthlyStatement, error) {
	if distributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor id is required")
	}
	month, err := types.ParseMonthKey(rawMonth)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid month key")
	}
	if err := s.requireDistributor(ctx, distributorID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListMonthly(ctx, distributorID, month)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commission transactions")
	}

	transactions := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, FromModel(row))
	}
	summary, total := summarize(rows)
	return &MonthlyStatement{
		DistributorID: distributorID,
		Month:         month,
		Transactions:  transactions,
		Summary:       summary,
		Total:         total,
	}, nil
}
