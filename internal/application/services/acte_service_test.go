package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meditrace/ccam-assist/internal/application/services"
	"github.com/meditrace/ccam-assist/internal/domain/entities"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
	"github.com/meditrace/ccam-assist/pkg/keylock"
)

func newActeFixture(t *testing.T) (*services.ActeService, *MockActeRepository, *MockAuditRepository) {
	t.Helper()

	acteRepo := &MockActeRepository{}
	auditRepo := &MockAuditRepository{}
	ledger := &MockLedgerProvider{}
	audit := services.NewAuditService(auditRepo, nil, ledger, 16)

	return services.NewActeService(acteRepo, audit, suggestionCfg, keylock.New()), acteRepo, auditRepo
}

func pendingActe(score float64) *entities.Acte {
	acte := testActe()
	acte.ScoreConfiance = score
	acte.CodeSuggere = "HHFA001"
	return acte
}

func TestActeService_Validate_HappyPath(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(95), nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(10), nil)

	acte, err := service.Validate(ctx, 1, "HHFA001", "", false, 7)
	require.NoError(t, err)

	assert.Equal(t, entities.StatutValide, acte.Statut)
	assert.Equal(t, "HHFA001", acte.CodeFinal)
	require.NotNil(t, acte.DateValidation)
	require.NotNil(t, acte.ValidateurID)
	assert.Equal(t, int64(7), *acte.ValidateurID)

	auditRepo.AssertNumberOfCalls(t, "Append", 1)
	entry := auditRepo.Calls[0].Arguments.Get(1).(*entities.AuditEntry)
	assert.Equal(t, entities.ActionValidateActe, entry.Action)
	assert.Equal(t, "HHFA001", entry.NewValues["code_ccam_final"])
}

func TestActeService_Validate_AlreadyFinalized(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	finalized := pendingActe(95)
	finalized.Statut = entities.StatutValide
	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(finalized, nil)

	_, err := service.Validate(ctx, 1, "HHFA001", "", false, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAlreadyFinalized))

	auditRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	acteRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestActeService_Validate_LowConfidence(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, _ := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(40), nil)

	_, err := service.Validate(ctx, 1, "HHFA001", "", false, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLowConfidence))
}

func TestActeService_Validate_ForceRequiresJustification(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, _ := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(40), nil)

	_, err := service.Validate(ctx, 1, "HHFA001", "", true, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestActeService_Validate_ForceWithJustification(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(40), nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(10), nil)

	acte, err := service.Validate(ctx, 1, "HHFA001", "validation manuelle apres relecture du dossier", true, 7)
	require.NoError(t, err)
	assert.Equal(t, entities.StatutValide, acte.Statut)
}

func TestActeService_Reject(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(95), nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(11), nil)

	acte, err := service.Reject(ctx, 1, "description incoherente avec le compte rendu", 7)
	require.NoError(t, err)
	assert.Equal(t, entities.StatutRejete, acte.Statut)

	entry := auditRepo.Calls[0].Arguments.Get(1).(*entities.AuditEntry)
	assert.Equal(t, entities.ActionRejectActe, entry.Action)
}

func TestActeService_Reject_RequiresReason(t *testing.T) {
	service, _, _ := newActeFixture(t)

	_, err := service.Reject(context.Background(), 1, "", 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestActeService_Update_RecordsDiff(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(80), nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(12), nil)

	duree := 90
	acte, err := service.Update(ctx, 1, entities.ActeUpdate{DureeActe: &duree}, 7)
	require.NoError(t, err)
	assert.Equal(t, 90, acte.DureeActe)

	entry := auditRepo.Calls[0].Arguments.Get(1).(*entities.AuditEntry)
	assert.Equal(t, entities.ActionUpdateActe, entry.Action)
	assert.Equal(t, 45, entry.OldValues["duree_acte"])
	assert.Equal(t, 90, entry.NewValues["duree_acte"])
}

func TestActeService_Update_NoFields(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, _ := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(80), nil)

	_, err := service.Update(ctx, 1, entities.ActeUpdate{}, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestActeService_AuditAppendFailureRevertsState(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(pendingActe(95), nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(0), assert.AnError)

	_, err := service.Validate(ctx, 1, "HHFA001", "", false, 7)
	require.Error(t, err)

	// Two updates: the transition and its revert. The reverted acte is
	// back to en_attente.
	acteRepo.AssertNumberOfCalls(t, "Update", 2)
	reverted := acteRepo.Calls[2].Arguments.Get(1).(*entities.Acte)
	assert.Equal(t, entities.StatutEnAttente, reverted.Statut)
	assert.Empty(t, reverted.CodeFinal)
}

func TestActeService_ApplySuggestion(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	acte := pendingActe(0)
	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(acte, nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(13), nil)

	updated, err := service.ApplySuggestion(ctx, 1, "GAQE001", 72, 7)
	require.NoError(t, err)
	assert.Equal(t, "GAQE001", updated.CodeSuggere)
	assert.Equal(t, 72.0, updated.ScoreConfiance)
	assert.Equal(t, entities.StatutEnAttente, updated.Statut)
}

func TestActeService_ConcurrentTransitions_OnlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	service, acteRepo, auditRepo := newActeFixture(t)

	// The same acte instance is returned to both goroutines; the per-acte
	// lock serializes them, so the second sees the finalized status.
	acte := pendingActe(95)
	acteRepo.On("GetByID", mock.Anything, int64(1)).Return(acte, nil)
	acteRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(int64(14), nil)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.Validate(ctx, 1, "HHFA001", "", false, 7)
		}(i)
	}
	wg.Wait()

	succeeded, finalized := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case apperrors.IsType(err, apperrors.ErrorTypeAlreadyFinalized):
			finalized++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, finalized)
}

func TestActeService_Create_Validation(t *testing.T) {
	service, acteRepo, _ := newActeFixture(t)

	_, err := service.Create(context.Background(), &entities.Acte{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	acteRepo.On("Create", mock.Anything, mock.Anything).Return(int64(5), nil)
	id, err := service.Create(context.Background(), testActe())
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}
