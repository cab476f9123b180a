package distributors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/payloads"
	"github.com/vendeo/vendeo-backend/pkg/pagination"
)

const tracerName = "github.com/vendeo/vendeo-backend/internal/distributors"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the distributor hierarchy.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*DistributorDTO, error)
	Reparent(ctx context.Context, id uuid.UUID, parentReferralCode *string) (*DistributorDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*DistributorDTO, error)
	DirectChildren(ctx context.Context, id uuid.UUID, params ListParams) (*ChildrenPage, error)
	FullSubtree(ctx context.Context, id uuid.UUID) ([]DistributorDTO, error)
	AscendantChain(ctx context.Context, id uuid.UUID) ([]DistributorDTO, error)
	Snapshot(ctx context.Context) (*Tree, error)
}

// ServiceParams wires the hierarchy service.
type ServiceParams struct {
	Repository  Repository
	TxRunner    txRunner
	Logger      *logger.Logger
	DefaultRate decimal.Decimal
	Tracer      trace.Tracer
	// Outbox receives hierarchy events; nil disables them.
	Outbox outbox.Emitter
}

type service struct {
	repo        Repository
	tx          txRunner
	logg        *logger.Logger
	defaultRate decimal.Decimal
	tracer      trace.Tracer
	outbox      outbox.Emitter
}

// NewService validates dependencies and returns the hierarchy service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("distributor repository required")
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
	return &service{
		repo:        params.Repository,
		tx:          params.TxRunner,
		logg:        params.Logger,
		defaultRate: params.DefaultRate,
		tracer:      tracer,
		outbox:      params.Outbox,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*DistributorDTO, error) {
	ctx, span := s.tracer.Start(ctx, "distributors.register",
		trace.WithAttributes(attribute.String("user.id", input.UserID.String())),
	)
	defer span.End()

	code := strings.TrimSpace(input.ReferralCode)
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code is required")
	}

	if _, err := s.repo.FindByUserID(ctx, input.UserID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup distributor by user")
	}

	if _, err := s.repo.FindByReferralCode(ctx, code); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "code already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup referral code")
	}

	level := 1
	var parentID *uuid.UUID
	if input.ParentReferralCode != nil {
		if parentCode := strings.TrimSpace(*input.ParentReferralCode); parentCode != "" {
			parent, err := s.resolveParent(ctx, s.repo, parentCode, code)
			if err != nil {
				return nil, err
			}
			parentID = &parent.ID
			level = parent.Level + 1
		}
	}

	distributor := &models.Distributor{
		UserID:         input.UserID,
		ReferralCode:   code,
		ParentID:       parentID,
		Level:          level,
		Active:         true,
		CommissionRate: s.defaultRate,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, distributor); err != nil {
			return mapCreateError(err)
		}
		return s.emit(ctx, tx, enums.EventDistributorRegistered, distributor.ID, payloads.DistributorRegisteredEvent{
			DistributorID: distributor.ID,
			UserID:        distributor.UserID,
			ReferralCode:  distributor.ReferralCode,
			ParentID:      distributor.ParentID,
			Level:         distributor.Level,
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("distributor.level", level))
	logCtx := s.logg.WithDistributorID(ctx, distributor.ID.String())
	logCtx = s.logg.WithField(logCtx, "level", level)
	s.logg.Info(logCtx, "distributor.registered")

	dto := FromModel(*distributor)
	return &dto, nil
}

func (s *service) resolveParent(ctx context.Context, repo Repository, parentCode, ownCode string) (*models.Distributor, error) {
	if parentCode == ownCode {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid parent code")
	}
	parent, err := repo.FindByReferralCode(ctx, parentCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid parent code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup parent distributor")
	}
	return parent, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID, data any) error {
	if s.outbox == nil {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDistributor,
		AggregateID:   aggregateID,
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue distributor event")
	}
	return nil
}

func mapCreateError(err error) error {
	switch {
	case db.IsUniqueViolation(err, uniqueUserIndex), db.IsUniqueViolation(err, uniqueUserColumn):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "already registered")
	case db.IsUniqueViolation(err, uniqueReferralIndex), db.IsUniqueViolation(err, uniqueReferralColumn):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "code already in use")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "distributor already exists")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create distributor")
	}
}

// Reparent moves a distributor under another parent, or to the root when the
// code is empty. The stored level is a registration snapshot and is left as is.
func (s *service) Reparent(ctx context.Context, id uuid.UUID, parentReferralCode *string) (*DistributorDTO, error) {
	ctx, span := s.tracer.Start(ctx, "distributors.reparent",
		trace.WithAttributes(attribute.String("distributor.id", id.String())),
	)
	defer span.End()

	var updated models.Distributor
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// Two concurrent moves could each pass the cycle check on their own
		// snapshot; the lock makes the second one see the first.
		if err := repo.LockHierarchy(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock hierarchy")
		}
		node, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup distributor")
		}

		var parentID *uuid.UUID
		if parentReferralCode != nil {
			if code := strings.TrimSpace(*parentReferralCode); code != "" {
				parent, err := s.resolveParent(ctx, repo, code, node.ReferralCode)
				if err != nil {
					return err
				}
				rows, err := repo.ListAll(ctx)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load hierarchy")
				}
				if NewTree(rows).WouldCreateCycle(node.ID, parent.ID) {
					return pkgerrors.New(pkgerrors.CodeValidation, "a distributor cannot become its own ancestor")
				}
				parentID = &parent.ID
			}
		}

		if err := repo.UpdateParent(ctx, node.ID, parentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parent")
		}
		previous := node.ParentID
		node.ParentID = parentID
		updated = *node
		return s.emit(ctx, tx, enums.EventDistributorReparented, node.ID, payloads.DistributorReparentedEvent{
			DistributorID:    node.ID,
			PreviousParentID: previous,
			ParentID:         parentID,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithDistributorID(ctx, id.String())
	logCtx = s.logg.WithField(logCtx, "level_snapshot", updated.Level)
	s.logg.Info(logCtx, "distributor.reparented")

	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*DistributorDTO, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err)
	}
	dto := FromModel(*d)
	return &dto, nil
}

func (s *service) DirectChildren(ctx context.Context, id uuid.UUID, params ListParams) (*ChildrenPage, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFoundOrDependency(err)
	}
	query := listChildrenParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.ListChildren(ctx, id, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list children")
	}
	page := &ChildrenPage{Items: fromModels(rows)}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) FullSubtree(ctx context.Context, id uuid.UUID) ([]DistributorDTO, error) {
	ctx, span := s.tracer.Start(ctx, "distributors.subtree",
		trace.WithAttributes(attribute.String("distributor.id", id.String())),
	)
	defer span.End()

	tree, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rows := tree.Subtree(id)
	if rows == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
	}
	span.SetAttributes(attribute.Int("subtree.size", len(rows)))
	return fromRanked(rows), nil
}

func (s *service) AscendantChain(ctx context.Context, id uuid.UUID) ([]DistributorDTO, error) {
	ctx, span := s.tracer.Start(ctx, "distributors.ascendants",
		trace.WithAttributes(attribute.String("distributor.id", id.String())),
	)
	defer span.End()

	tree, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rows := tree.Ascendants(id)
	if rows == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
	}
	span.SetAttributes(attribute.Int("chain.length", len(rows)))
	return fromRanked(rows), nil
}

// Snapshot loads the full hierarchy into a traversal tree.
func (s *service) Snapshot(ctx context.Context) (*Tree, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load hierarchy")
	}
	return NewTree(rows), nil
}

func notFoundOrDependency(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup distributor")
}
