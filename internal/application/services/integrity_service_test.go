package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meditrace/ccam-assist/internal/application/services"
	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

func anchoredTrail(ts time.Time) []*entities.AuditEntry {
	return []*entities.AuditEntry{
		{
			ID:              10,
			ActeID:          1,
			UtilisateurID:   7,
			Action:          entities.ActionValidateActe,
			EntityType:      "acte",
			EntityID:        1,
			NewValues:       map[string]any{"code_ccam_final": "HHFA001", "justification": "ras"},
			TransactionHash: "0xabc",
			AnchorStatut:    entities.AnchorAnchored,
			Timestamp:       ts,
		},
	}
}

func ledgerPayload(ts time.Time) *entities.AnchorPayload {
	return &entities.AnchorPayload{
		EntryID:       10,
		EntityID:      1,
		ActionType:    entities.ActionValidateActe,
		CodeAfter:     "HHFA001",
		ActorID:       7,
		Justification: "ras",
		Timestamp:     ts,
	}
}

func finalizedActe() *entities.Acte {
	acte := testActe()
	acte.Statut = entities.StatutValide
	acte.CodeFinal = "HHFA001"
	return acte
}

func newIntegrityFixture(t *testing.T) (*services.IntegrityService, *MockActeRepository, *MockAuditRepository, *MockLedgerProvider, *MockEventBus) {
	t.Helper()

	acteRepo := &MockActeRepository{}
	auditRepo := &MockAuditRepository{}
	ledger := &MockLedgerProvider{}
	eventBus := &MockEventBus{}

	service := services.NewIntegrityService(acteRepo, auditRepo, ledger, eventBus, nil)
	return service, acteRepo, auditRepo, ledger, eventBus
}

func TestIntegrityService_Reconcile_Verified(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo, ledger, eventBus := newIntegrityFixture(t)
	ts := time.Now().UTC().Truncate(time.Second)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(finalizedActe(), nil)
	auditRepo.On("ListByActe", mock.Anything, int64(1), mock.Anything).Return(anchoredTrail(ts), 1, nil)
	ledger.On("ListForEntity", mock.Anything, int64(1)).Return([]string{"0xabc"}, nil)
	ledger.On("Query", mock.Anything, "0xabc").Return(ledgerPayload(ts), nil)

	report, err := service.Reconcile(ctx, 1)
	require.NoError(t, err)

	assert.True(t, report.Verified)
	assert.Empty(t, report.Divergences)
	eventBus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntegrityService_Reconcile_DetectsTamperedCode(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo, ledger, eventBus := newIntegrityFixture(t)
	ts := time.Now().UTC().Truncate(time.Second)

	// The local row was edited after anchoring.
	tampered := anchoredTrail(ts)
	tampered[0].NewValues["code_ccam_final"] = "ZZZZ999"
	acte := finalizedActe()
	acte.CodeFinal = "ZZZZ999"

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(acte, nil)
	auditRepo.On("ListByActe", mock.Anything, int64(1), mock.Anything).Return(tampered, 1, nil)
	ledger.On("ListForEntity", mock.Anything, int64(1)).Return([]string{"0xabc"}, nil)
	ledger.On("Query", mock.Anything, "0xabc").Return(ledgerPayload(ts), nil)
	eventBus.On("Publish", mock.Anything, providers.AlertsChannel, mock.Anything).Return(nil)

	report, err := service.Reconcile(ctx, 1)
	require.NoError(t, err)

	assert.False(t, report.Verified)
	require.NotEmpty(t, report.Divergences)
	assert.Equal(t, "code_after", report.Divergences[0].Field)
	assert.Equal(t, "ZZZZ999", report.Divergences[0].Local)
	assert.Equal(t, "HHFA001", report.Divergences[0].Ledger)

	event := eventBus.Calls[0].Arguments.Get(2).(*entities.AuditEvent)
	assert.Equal(t, entities.EventIntegrityDivergence, event.Type)
	assert.Equal(t, int64(1), event.ActeID)
}

func TestIntegrityService_Reconcile_LedgerTransactionMissingLocally(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo, ledger, eventBus := newIntegrityFixture(t)
	ts := time.Now().UTC().Truncate(time.Second)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(finalizedActe(), nil)
	auditRepo.On("ListByActe", mock.Anything, int64(1), mock.Anything).Return([]*entities.AuditEntry{}, 0, nil)
	ledger.On("ListForEntity", mock.Anything, int64(1)).Return([]string{"0xabc"}, nil)
	ledger.On("Query", mock.Anything, "0xabc").Return(ledgerPayload(ts), nil)
	eventBus.On("Publish", mock.Anything, providers.AlertsChannel, mock.Anything).Return(nil)

	report, err := service.Reconcile(ctx, 1)
	require.NoError(t, err)

	assert.False(t, report.Verified)
	require.NotEmpty(t, report.Divergences)
	assert.Equal(t, "transaction", report.Divergences[0].Field)
	assert.Equal(t, "0xabc", report.Divergences[0].Ledger)
}

func TestIntegrityService_Reconcile_LocalAnchorUnknownToLedger(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo, ledger, eventBus := newIntegrityFixture(t)
	ts := time.Now().UTC().Truncate(time.Second)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(finalizedActe(), nil)
	auditRepo.On("ListByActe", mock.Anything, int64(1), mock.Anything).Return(anchoredTrail(ts), 1, nil)
	ledger.On("ListForEntity", mock.Anything, int64(1)).Return([]string{}, nil)
	eventBus.On("Publish", mock.Anything, providers.AlertsChannel, mock.Anything).Return(nil)

	report, err := service.Reconcile(ctx, 1)
	require.NoError(t, err)

	assert.False(t, report.Verified)
	require.NotEmpty(t, report.Divergences)
	assert.Equal(t, "transaction", report.Divergences[0].Field)
	assert.Equal(t, "0xabc", report.Divergences[0].Local)
	assert.Empty(t, report.Divergences[0].Ledger)
}

func TestIntegrityService_Verify(t *testing.T) {
	ctx := context.Background()
	ts := time.Now().UTC().Truncate(time.Second)

	t.Run("verified record passes", func(t *testing.T) {
		service, acteRepo, auditRepo, ledger, _ := newIntegrityFixture(t)
		acteRepo.On("GetByID", mock.Anything, int64(1)).Return(finalizedActe(), nil)
		auditRepo.On("ListByActe", mock.Anything, int64(1), mock.Anything).Return(anchoredTrail(ts), 1, nil)
		ledger.On("ListForEntity", mock.Anything, int64(1)).Return([]string{"0xabc"}, nil)
		ledger.On("Query", mock.Anything, "0xabc").Return(ledgerPayload(ts), nil)

		require.NoError(t, service.Verify(ctx, 1))
	})

	t.Run("diverged record fails", func(t *testing.T) {
		service, acteRepo, auditRepo, ledger, eventBus := newIntegrityFixture(t)
		acteRepo.On("GetByID", mock.Anything, int64(1)).Return(finalizedActe(), nil)
		auditRepo.On("ListByActe", mock.Anything, int64(1), mock.Anything).Return(anchoredTrail(ts), 1, nil)
		ledger.On("ListForEntity", mock.Anything, int64(1)).Return([]string{}, nil)
		eventBus.On("Publish", mock.Anything, providers.AlertsChannel, mock.Anything).Return(nil)

		err := service.Verify(ctx, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeIntegrityDivergence))
	})
}

func TestIntegrityService_SweepFinalized_AdvancesCursor(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo, ledger, _ := newIntegrityFixture(t)
	ts := time.Now().UTC().Truncate(time.Second)

	first := finalizedActe()
	first.ID = 4
	second := finalizedActe()
	second.ID = 9

	acteRepo.On("ListFinalizedSince", mock.Anything, int64(0), 50).Return([]*entities.Acte{first, second}, nil)
	acteRepo.On("GetByID", mock.Anything, mock.Anything).Return(finalizedActe(), nil)
	auditRepo.On("ListByActe", mock.Anything, mock.Anything, mock.Anything).Return(anchoredTrail(ts), 1, nil)
	ledger.On("ListForEntity", mock.Anything, mock.Anything).Return([]string{"0xabc"}, nil)
	ledger.On("Query", mock.Anything, "0xabc").Return(ledgerPayload(ts), nil)

	cursor, err := service.SweepFinalized(ctx, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(9), cursor)
}
