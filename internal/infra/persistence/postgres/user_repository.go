package postgres

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"athfed/internal/domain/entity"
	"athfed/internal/domain/repository"
	"athfed/internal/infra/persistence/model"
)

// userRepository implements the domain.UserRepository interface.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create persists a new user and fills in generated fields.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM, err := fromUserDomain(user)
	if err != nil {
		return err
	}
	if userM.ID == uuid.Nil {
		userM.ID = uuid.New()
	}
	if userM.PublicID == uuid.Nil {
		userM.PublicID = uuid.New()
	}

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrEmailTaken
		}

		return errors.WithStack(err)
	}

	user.ID = userM.ID
	user.PublicID = userM.PublicID
	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// FindByID retrieves a user by internal id.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return repo.findOne(ctx, "id = ?", id)
}

// FindByPublicID retrieves a user by the opaque id carried in tokens.
func (repo *userRepository) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*entity.User, error) {
	return repo.findOne(ctx, "public_id = ?", publicID)
}

// FindByEmail retrieves a user by normalized email.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.findOne(ctx, "email = ?", entity.NormalizeEmail(email))
}

func (repo *userRepository) findOne(ctx context.Context, query string, arg any) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).Where(query, arg).First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toUserDomain(&userM)
}

// UpdatePasswordHash replaces the stored password hash.
func (repo *userRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return repo.updateColumns(ctx, id, map[string]any{"password_hash": hash})
}

// SetEmailVerified flips the email verification flag.
func (repo *userRepository) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	return repo.updateColumns(ctx, id, map[string]any{"is_email_verified": true})
}

// EnableTwoFactor persists the confirmed secret and backup code hashes
// in one update.
func (repo *userRepository) EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string, backupCodeHashes []string) error {
	payload, err := json.Marshal(backupCodeHashes)
	if err != nil {
		return errors.Wrap(err, "marshal backup code hashes")
	}

	return repo.updateColumns(ctx, id, map[string]any{
		"two_factor_enabled": true,
		"two_factor_secret":  secret,
		"backup_code_hashes": payload,
	})
}

// DisableTwoFactor clears the secret, backup codes and enabled flag.
func (repo *userRepository) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"two_factor_enabled": false,
		"two_factor_secret":  "",
		"backup_code_hashes": nil,
	})
}

// ConsumeBackupCode removes one backup code hash from the user's set.
// The row lock keeps two concurrent redemptions of the same code from
// both succeeding.
func (repo *userRepository) ConsumeBackupCode(ctx context.Context, id uuid.UUID, codeHash string) (bool, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, repository.ErrUserNotFound
		}

		return false, errors.WithStack(err)
	}

	hashes, err := decodeBackupCodeHashes(userM.BackupCodeHashes)
	if err != nil {
		return false, err
	}

	index := slices.Index(hashes, codeHash)
	if index < 0 {
		return false, nil
	}

	remaining := slices.Delete(hashes, index, index+1)
	payload, err := json.Marshal(remaining)
	if err != nil {
		return false, errors.Wrap(err, "marshal backup code hashes")
	}

	if err := repo.updateColumns(ctx, id, map[string]any{"backup_code_hashes": payload}); err != nil {
		return false, err
	}

	return true, nil
}

func (repo *userRepository) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return errors.WithStack(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// --- Mapper Functions ---

// toUserDomain converts a GORM UserModel to a domain User entity.
func toUserDomain(data *model.UserModel) (*entity.User, error) {
	if data == nil {
		return nil, nil
	}

	hashes, err := decodeBackupCodeHashes(data.BackupCodeHashes)
	if err != nil {
		return nil, err
	}

	return &entity.User{
		ID:               data.ID,
		PublicID:         data.PublicID,
		Email:            data.Email,
		Name:             data.Name,
		PasswordHash:     data.PasswordHash,
		Role:             entity.Role(data.Role),
		IsActive:         data.IsActive,
		IsEmailVerified:  data.IsEmailVerified,
		TwoFactorEnabled: data.TwoFactorEnabled,
		TwoFactorSecret:  data.TwoFactorSecret,
		BackupCodeHashes: hashes,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}, nil
}

// fromUserDomain converts a domain User entity to a GORM UserModel.
func fromUserDomain(data *entity.User) (*model.UserModel, error) {
	if data == nil {
		return nil, nil
	}

	var payload []byte
	if len(data.BackupCodeHashes) > 0 {
		encoded, err := json.Marshal(data.BackupCodeHashes)
		if err != nil {
			return nil, errors.Wrap(err, "marshal backup code hashes")
		}
		payload = encoded
	}

	return &model.UserModel{
		ID:               data.ID,
		PublicID:         data.PublicID,
		Email:            entity.NormalizeEmail(data.Email),
		Name:             data.Name,
		PasswordHash:     data.PasswordHash,
		Role:             data.Role.String(),
		IsActive:         data.IsActive,
		IsEmailVerified:  data.IsEmailVerified,
		TwoFactorEnabled: data.TwoFactorEnabled,
		TwoFactorSecret:  data.TwoFactorSecret,
		BackupCodeHashes: payload,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}, nil
}

func decodeBackupCodeHashes(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var hashes []string
	if err := json.Unmarshal(raw, &hashes); err != nil {
		return nil, errors.Wrap(err, "decode backup code hashes")
	}

	return hashes, nil
}
