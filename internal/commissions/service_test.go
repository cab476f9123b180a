package commissions

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/db/dbtest"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/payloads"
)

var fixedNow = time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)

type fixture struct {
	conn       *gorm.DB
	svc        Service
	hierarchy  distributors.Service
	reg        *prometheus.Registry
	root, mid  *distributors.DistributorDTO
	sellerDist *distributors.DistributorDTO
	seller     models.Seller
	client     models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	tx := db.NewFromConn(conn)

	hierarchy, err := distributors.NewService(distributors.ServiceParams{
		Repository: distributors.NewRepository(conn),
		TxRunner:   tx,
		Logger:     logg,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Hierarchy:  hierarchy,
		TxRunner:   tx,
		Logger:     logg,
		Metrics:    metrics.NewCommissionMetrics(reg),
		Clock:      func() time.Time { return fixedNow },
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
	})
	require.NoError(t, err)

	f := &fixture{conn: conn, svc: svc, hierarchy: hierarchy, reg: reg}
	ctx := context.Background()

	f.root, err = hierarchy.Register(ctx, distributors.RegisterInput{UserID: uuid.New(), ReferralCode: "ROOT"})
	require.NoError(t, err)
	f.mid, err = hierarchy.Register(ctx, distributors.RegisterInput{UserID: uuid.New(), ReferralCode: "MID", ParentReferralCode: ptr("ROOT")})
	require.NoError(t, err)

	f.seller = models.Seller{DisplayName: "Ines", ReferralCode: "INES75"}
	require.NoError(t, conn.Create(&f.seller).Error)
	f.sellerDist, err = hierarchy.Register(ctx, distributors.RegisterInput{UserID: f.seller.ID, ReferralCode: "SELLER", ParentReferralCode: ptr("MID")})
	require.NoError(t, err)

	f.client = models.Client{Name: "Client A", SellerCode: ptr("INES75")}
	require.NoError(t, conn.Create(&f.client).Error)

	rules := []models.CommissionRule{
		{Level: 1, ProductType: enums.ProductTypeFreeboxPop, Rate: decimal.NewFromInt(10), Active: true},
		{Level: 2, ProductType: enums.ProductTypeFreeboxPop, Rate: decimal.NewFromInt(5), Active: true},
		{Level: 3, ProductType: enums.ProductTypeFreeboxPop, Rate: decimal.NewFromInt(3), Active: true},
		{Level: 1, ProductType: enums.ProductTypeForfait5G, Rate: decimal.NewFromInt(2), Active: true},
	}
	require.NoError(t, conn.Create(&rules).Error)
	require.NoError(t, conn.Model(&models.CommissionRule{}).
		Where("niveau = ? AND product_type = ?", 3, enums.ProductTypeFreeboxPop).
		Update("actif", false).Error)
	return f
}

func ptr(s string) *string { return &s }

func TestPropagateAppliesRulePerLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Propagate(ctx, PropagateInput{
		ClientID:    f.client.ID,
		ProductType: enums.ProductTypeFreeboxPop,
		SaleAmount:  decimal.RequireFromString("39.99"),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	byDistributor := map[uuid.UUID]TransactionDTO{}
	for _, tx := range out {
		byDistributor[tx.DistributorID] = tx
		assert.Equal(t, "2026-05", tx.MonthKey)
		assert.Equal(t, enums.CommissionStatusCalculee, tx.Status)
		assert.NotEqual(t, uuid.Nil, tx.ID)
	}
	_, sellerPaid := byDistributor[f.sellerDist.ID]
	assert.False(t, sellerPaid, "inactive level 3 rule must not pay")

	rootTx := byDistributor[f.root.ID]
	assert.Equal(t, 1, rootTx.Level)
	assert.True(t, rootTx.Amount.Equal(decimal.RequireFromString("4.00")), "root=%s", rootTx.Amount)

	midTx := byDistributor[f.mid.ID]
	assert.Equal(t, 2, midTx.Level)
	assert.True(t, midTx.Amount.Equal(decimal.RequireFromString("2.00")), "mid=%s", midTx.Amount)

	var stored int64
	require.NoError(t, f.conn.Model(&models.CommissionTransaction{}).Count(&stored).Error)
	assert.Equal(t, int64(2), stored)

	families, err := f.reg.Gather()
	require.NoError(t, err)
	created := 0.0
	for _, family := range families {
		if family.GetName() == "commission_transactions_created_total" {
			for _, m := range family.GetMetric() {
				created += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, created)
}

func TestPropagateMissingLevelDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Propagate(context.Background(), PropagateInput{
		ClientID:    f.client.ID,
		ProductType: enums.ProductTypeForfait5G,
		SaleAmount:  decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, f.root.ID, out[0].DistributorID)
	assert.True(t, out[0].Amount.Equal(decimal.RequireFromString("0.40")))
}

func TestPropagateOutsideProgramIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noCode := models.Client{Name: "Walk-in"}
	require.NoError(t, f.conn.Create(&noCode).Error)
	unknownSeller := models.Client{Name: "Lost", SellerCode: ptr("NOBODY")}
	require.NoError(t, f.conn.Create(&unknownSeller).Error)

	plainSeller := models.Seller{DisplayName: "Paul", ReferralCode: "PAUL01"}
	require.NoError(t, f.conn.Create(&plainSeller).Error)
	nonMLM := models.Client{Name: "Retail", SellerCode: ptr("PAUL01")}
	require.NoError(t, f.conn.Create(&nonMLM).Error)

	for _, clientID := range []uuid.UUID{noCode.ID, unknownSeller.ID, nonMLM.ID, uuid.New()} {
		out, err := f.svc.Propagate(ctx, PropagateInput{
			ClientID:    clientID,
			ProductType: enums.ProductTypeFreeboxPop,
			SaleAmount:  decimal.NewFromInt(40),
		})
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	}

	var stored int64
	require.NoError(t, f.conn.Model(&models.CommissionTransaction{}).Count(&stored).Error)
	assert.Zero(t, stored)
}

func TestPropagateZeroAmountRecordsNothing(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Propagate(context.Background(), PropagateInput{
		ClientID:    f.client.ID,
		ProductType: enums.ProductTypeFreeboxPop,
		SaleAmount:  decimal.Zero,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPropagateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Propagate(ctx, PropagateInput{ProductType: enums.ProductTypeFreeboxPop, SaleAmount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Propagate(ctx, PropagateInput{ClientID: f.client.ID, SaleAmount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Propagate(ctx, PropagateInput{ClientID: f.client.ID, ProductType: enums.ProductTypeFreeboxPop, SaleAmount: decimal.NewFromInt(-5)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatusTransitionsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Propagate(ctx, PropagateInput{
			ClientID:    f.client.ID,
			ProductType: enums.ProductTypeFreeboxPop,
			SaleAmount:  decimal.NewFromInt(50),
		})
		require.NoError(t, err)
	}

	paid, err := f.svc.MarkMonthlyPaid(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	assert.Zero(t, paid.Updated, "calculee rows cannot jump to payee")

	first, err := f.svc.ValidateMonthly(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.Updated)

	second, err := f.svc.ValidateMonthly(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	assert.Zero(t, second.Updated)

	otherMonth, err := f.svc.ValidateMonthly(ctx, f.mid.ID, "2026-04")
	require.NoError(t, err)
	assert.Zero(t, otherMonth.Updated)

	paid, err = f.svc.MarkMonthlyPaid(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	assert.Equal(t, int64(3), paid.Updated)

	statement, err := f.svc.ListMonthly(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	require.Len(t, statement.Transactions, 3)
	require.Len(t, statement.Summary, 1)
	assert.Equal(t, enums.CommissionStatusPayee, statement.Summary[0].Status)
	assert.Equal(t, 3, statement.Summary[0].Count)
	assert.True(t, statement.Total.Equal(decimal.NewFromInt(15)), "total=%s", statement.Total)

	midStatement, err := f.svc.ListMonthly(ctx, f.mid.ID, "2026-05")
	require.NoError(t, err)
	require.Len(t, midStatement.Summary, 1)
	assert.Equal(t, enums.CommissionStatusCalculee, midStatement.Summary[0].Status)
}

func TestStatusTransitionRejectsBadMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, month := range []string{"2026-13", "26-05", "", "2026/05"} {
		_, err := f.svc.ValidateMonthly(ctx, f.root.ID, month)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "month=%q", month)
		_, err = f.svc.ListMonthly(ctx, f.root.ID, month)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "month=%q", month)
	}
	_, err := f.svc.MarkMonthlyPaid(ctx, uuid.Nil, "2026-05")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatusTransitionRejectsUnknownDistributor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown := uuid.New()

	_, err := f.svc.ValidateMonthly(ctx, unknown, "2026-05")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "validate: %v", err)
	_, err = f.svc.MarkMonthlyPaid(ctx, unknown, "2026-05")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "pay: %v", err)
	_, err = f.svc.ListMonthly(ctx, unknown, "2026-05")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "list: %v", err)

	statement, err := f.svc.ListMonthly(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	assert.Empty(t, statement.Transactions)
}

func TestDeleteOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.conn)

	ghost := uuid.New()
	rows := []models.CommissionTransaction{
		{DistributorID: ghost, ClientID: f.client.ID, ProductType: enums.ProductTypeFreeboxPop, SaleAmount: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1), Rate: decimal.NewFromInt(10), Level: 1, MonthKey: "2026-05"},
		{DistributorID: ghost, ClientID: f.client.ID, ProductType: enums.ProductTypeFreeboxPop, SaleAmount: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1), Rate: decimal.NewFromInt(10), Level: 1, MonthKey: "2026-05", Status: enums.CommissionStatusPayee},
		{DistributorID: f.root.ID, ClientID: f.client.ID, ProductType: enums.ProductTypeFreeboxPop, SaleAmount: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1), Rate: decimal.NewFromInt(10), Level: 1, MonthKey: "2026-05"},
	}
	require.NoError(t, repo.CreateTransactions(ctx, rows))

	deleted, err := repo.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, f.conn.Model(&models.CommissionTransaction{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func outboxEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var events []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", eventType).Find(&events).Error)
	return events
}

func TestCommissionChangesQueueOutboxEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Propagate(ctx, PropagateInput{
		ClientID:    f.client.ID,
		ProductType: enums.ProductTypeFreeboxPop,
		SaleAmount:  decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	recorded := outboxEvents(t, f.conn, enums.EventCommissionRecorded)
	require.Len(t, recorded, 2)
	ids := map[uuid.UUID]bool{out[0].ID: true, out[1].ID: true}
	for _, event := range recorded {
		assert.Equal(t, enums.AggregateCommissionTransaction, event.AggregateType)
		assert.True(t, ids[event.AggregateID])
	}

	_, err = f.svc.ValidateMonthly(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	_, err = f.svc.ValidateMonthly(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)

	validated := outboxEvents(t, f.conn, enums.EventCommissionMonthValidated)
	require.Len(t, validated, 1, "a no-op transition queues nothing")
	assert.Equal(t, f.root.ID, validated[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(validated[0].Payload, &envelope))
	var data payloads.CommissionMonthEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "2026-05", data.MonthKey)
	assert.Equal(t, enums.CommissionStatusValidee, data.Status)
	assert.Equal(t, int64(1), data.Updated)
	assert.True(t, data.Total.Equal(decimal.NewFromInt(5)), "total=%s", data.Total)

	_, err = f.svc.MarkMonthlyPaid(ctx, f.root.ID, "2026-05")
	require.NoError(t, err)
	assert.Len(t, outboxEvents(t, f.conn, enums.EventCommissionMonthPaid), 1)
}
