package activation

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ValidationTokens interface {
	repository.Repository[*ValidationToken]

	Persist(ctx context.Context, token *ValidationToken) (*ValidationToken, error)
	PersistTx(ctx context.Context, tx bun.IDB, token *ValidationToken) (*ValidationToken, error)

	GetByToken(ctx context.Context, token string) (*ValidationToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*ValidationToken, error)

	// DeleteByToken removes the row for token and reports whether one existed.
	// Deleting a missing token is not an error; under concurrent redemption
	// the rows-affected result is what arbitrates the winner.
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (bool, error)
}

type validationTokens struct {
	repository.Repository[*ValidationToken]
	db *bun.DB
}

var (
	_ ValidationTokens                        = (*validationTokens)(nil)
	_ repository.Repository[*ValidationToken] = (*validationTokens)(nil)
)

func NewValidationTokensRepository(db *bun.DB) ValidationTokens {
	repo := repository.NewRepository[*ValidationToken](db, repository.ModelHandlers[*ValidationToken]{
		NewRecord: func() *ValidationToken { return &ValidationToken{} },
		GetID: func(record *ValidationToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ValidationToken, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &validationTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *validationTokens) Persist(ctx context.Context, token *ValidationToken) (*ValidationToken, error) {
	return r.PersistTx(ctx, r.db, token)
}

func (r *validationTokens) PersistTx(ctx context.Context, tx bun.IDB, token *ValidationToken) (*ValidationToken, error) {
	if token != nil && token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, token)
}

func (r *validationTokens) GetByToken(ctx context.Context, token string) (*ValidationToken, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *validationTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*ValidationToken, error) {
	record := &ValidationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"token": token,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *validationTokens) DeleteByToken(ctx context.Context, token string) (bool, error) {
	return r.DeleteByTokenTx(ctx, r.db, token)
}

func (r *validationTokens) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*ValidationToken)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}
