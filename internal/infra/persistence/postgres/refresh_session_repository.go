package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"athfed/internal/domain/entity"
	"athfed/internal/domain/repository"
	"athfed/internal/infra/persistence/model"
)

// refreshSessionRepository implements the domain.RefreshSessionRepository interface.
type refreshSessionRepository struct {
	db *gorm.DB
}

// NewRefreshSessionRepository is the constructor for refreshSessionRepository.
func NewRefreshSessionRepository(db *gorm.DB) repository.RefreshSessionRepository {
	return &refreshSessionRepository{db: db}
}

// Create persists a new active session for a freshly minted token pair.
func (repo *refreshSessionRepository) Create(ctx context.Context, session *entity.RefreshSession) error {
	sessionM := fromRefreshSessionDomain(session)
	if sessionM.ID == uuid.Nil {
		sessionM.ID = uuid.New()
	}
	if sessionM.Status == "" {
		sessionM.Status = string(entity.SessionActive)
	}

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Wrap(repository.ErrSessionReplayed, "refresh jti already recorded")
		}
		if isForeignKeyConstraintViolation(err) {
			return errors.Wrap(repository.ErrSessionNotFound, "invalid user reference")
		}

		return errors.WithStack(err)
	}

	session.ID = sessionM.ID
	session.Status = entity.SessionStatus(sessionM.Status)

	return nil
}

// FindActiveByRefreshJTI returns the session for the jti when it is
// active and unexpired.
func (repo *refreshSessionRepository) FindActiveByRefreshJTI(ctx context.Context, jti uuid.UUID) (*entity.RefreshSession, error) {
	var sessionM model.RefreshSessionModel
	if err := repo.db.WithContext(ctx).
		Where("refresh_jti = ?", jti).
		First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.WithStack(err)
	}

	session := toRefreshSessionDomain(&sessionM)
	if session.Status != entity.SessionActive {
		return nil, repository.ErrSessionNotFound
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrSessionExpired
	}

	return session, nil
}

// FindActiveByUserID lists the user's active, unexpired sessions, newest first.
func (repo *refreshSessionRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.RefreshSession, error) {
	var sessionModels []*model.RefreshSessionModel
	if err := repo.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND expires_at > ?",
			userID, string(entity.SessionActive), time.Now()).
		Order("issued_at DESC").
		Find(&sessionModels).Error; err != nil {
		return nil, errors.WithStack(err)
	}

	sessions := make([]*entity.RefreshSession, 0, len(sessionModels))
	for _, sessionM := range sessionModels {
		sessions = append(sessions, toRefreshSessionDomain(sessionM))
	}

	return sessions, nil
}

// Rotate revokes the old session row and inserts its replacement. The
// revocation is a conditional update on status, so of two concurrent
// rotations of the same jti exactly one flips the row; the loser's
// update matches nothing and the existing row tells us whether that is
// a replay or an unknown token.
func (repo *refreshSessionRepository) Rotate(ctx context.Context, input repository.RotateInput) (*entity.RefreshSession, error) {
	var rotated *entity.RefreshSession

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var current model.RefreshSessionModel
		if err := tx.Where("refresh_jti = ?", input.OldRefreshJTI).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrSessionNotFound
			}

			return errors.WithStack(err)
		}

		if current.Status != string(entity.SessionActive) {
			return repository.ErrSessionReplayed
		}
		if !current.ExpiresAt.After(now) {
			return repository.ErrSessionExpired
		}

		result := tx.Model(&model.RefreshSessionModel{}).
			Where("refresh_jti = ? AND status = ?", input.OldRefreshJTI, string(entity.SessionActive)).
			Updates(map[string]any{
				"status":     string(entity.SessionRevoked),
				"revoked_at": now,
			})
		if result.Error != nil {
			return errors.WithStack(result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrSessionReplayed
		}

		replacement := &model.RefreshSessionModel{
			ID:         uuid.New(),
			UserID:     current.UserID,
			AccessJTI:  input.NewAccessJTI,
			RefreshJTI: input.NewRefreshJTI,
			Status:     string(entity.SessionActive),
			UserAgent:  input.UserAgent,
			IssuedAt:   now,
			ExpiresAt:  input.NewExpiresAt,
		}
		if err := tx.Create(replacement).Error; err != nil {
			return errors.WithStack(err)
		}

		rotated = toRefreshSessionDomain(replacement)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rotated, nil
}

// RevokeByRefreshJTI marks a single session revoked.
func (repo *refreshSessionRepository) RevokeByRefreshJTI(ctx context.Context, jti uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Model(&model.RefreshSessionModel{}).
		Where("refresh_jti = ? AND status = ?", jti, string(entity.SessionActive)).
		Updates(map[string]any{
			"status":     string(entity.SessionRevoked),
			"revoked_at": time.Now(),
		})
	if result.Error != nil {
		return errors.WithStack(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// RevokeAllByUserID marks every active session for the user revoked.
func (repo *refreshSessionRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.RefreshSessionModel{}).
		Where("user_id = ? AND status = ?", userID, string(entity.SessionActive)).
		Updates(map[string]any{
			"status":     string(entity.SessionRevoked),
			"revoked_at": time.Now(),
		})
	if result.Error != nil {
		return 0, errors.WithStack(result.Error)
	}

	return result.RowsAffected, nil
}

// RevokeAllByUserIDExcept revokes every active session except the one
// holding the given refresh jti.
func (repo *refreshSessionRepository) RevokeAllByUserIDExcept(ctx context.Context, userID uuid.UUID, keepRefreshJTI uuid.UUID) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.RefreshSessionModel{}).
		Where("user_id = ? AND status = ? AND refresh_jti <> ?",
			userID, string(entity.SessionActive), keepRefreshJTI).
		Updates(map[string]any{
			"status":     string(entity.SessionRevoked),
			"revoked_at": time.Now(),
		})
	if result.Error != nil {
		return 0, errors.WithStack(result.Error)
	}

	return result.RowsAffected, nil
}

// DeleteExpired removes rows whose expiry is past.
func (repo *refreshSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&model.RefreshSessionModel{})
	if result.Error != nil {
		return 0, errors.WithStack(result.Error)
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toRefreshSessionDomain converts a GORM RefreshSessionModel to a domain RefreshSession entity.
func toRefreshSessionDomain(data *model.RefreshSessionModel) *entity.RefreshSession {
	if data == nil {
		return nil
	}

	return &entity.RefreshSession{
		ID:         data.ID,
		UserID:     data.UserID,
		AccessJTI:  data.AccessJTI,
		RefreshJTI: data.RefreshJTI,
		Status:     entity.SessionStatus(data.Status),
		UserAgent:  data.UserAgent,
		IssuedAt:   data.IssuedAt,
		ExpiresAt:  data.ExpiresAt,
		RevokedAt:  data.RevokedAt,
	}
}

// fromRefreshSessionDomain converts a domain RefreshSession entity to a GORM RefreshSessionModel.
func fromRefreshSessionDomain(data *entity.RefreshSession) *model.RefreshSessionModel {
	if data == nil {
		return nil
	}

	return &model.RefreshSessionModel{
		ID:         data.ID,
		UserID:     data.UserID,
		AccessJTI:  data.AccessJTI,
		RefreshJTI: data.RefreshJTI,
		Status:     string(data.Status),
		UserAgent:  data.UserAgent,
		IssuedAt:   data.IssuedAt,
		ExpiresAt:  data.ExpiresAt,
		RevokedAt:  data.RevokedAt,
	}
}
