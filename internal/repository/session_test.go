package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

func TestSessionRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	users := NewUserRepository(db.DB)
	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	user, err := users.Create(ctx, model.CreateUserParams{Phone: "2348020000001"})
	require.NoError(t, err)

	t.Run("missing session defaults to start", func(t *testing.T) {
		session, err := repo.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StageStart, session.Stage)
		assert.Nil(t, session.LastInteractionAt)
	})

	t.Run("save round trips and stamps last interaction", func(t *testing.T) {
		session := model.NewSession()
		session.AwaitPayment(model.PaymentFlow{ProviderID: "p", ServiceName: "Plumbing", Price: 5000, PaymentReference: "HLP-abc"})
		session.AppendTurn(model.RoleUser, "hi")
		require.NoError(t, repo.Save(ctx, user.ID, session))

		loaded, err := repo.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StageAwaitingPayment, loaded.Stage)
		require.NotNil(t, loaded.Payment)
		assert.Equal(t, "HLP-abc", loaded.Payment.PaymentReference)
		assert.NotNil(t, loaded.LastInteractionAt)
		assert.Len(t, loaded.History, 1)
	})

	t.Run("save overwrites", func(t *testing.T) {
		session := model.NewSession()
		session.ResetTo(model.StageMenu)
		require.NoError(t, repo.Save(ctx, user.ID, session))

		loaded, err := repo.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StageMenu, loaded.Stage)
		assert.Nil(t, loaded.Payment)
	})
}
