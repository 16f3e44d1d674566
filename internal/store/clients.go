package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/agentgate/internal/models"
	"github.com/go-authgate/agentgate/internal/util"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// clientSecretCost matches the bcrypt cost the secrets have always been hashed with.
const clientSecretCost = 10

// CreateClient registers a client and returns it together with the
// plaintext secret. The secret is not retrievable afterwards.
func (s *Store) CreateClient(
	ctx context.Context,
	name string,
	redirectURIs []string,
) (*models.OAuthClient, string, error) {
	if len(redirectURIs) == 0 {
		return nil, "", fmt.Errorf("%w: at least one redirect URI is required", ErrValidation)
	}

	secret, err := util.CryptoRandomURLSafe(32)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate client secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), clientSecretCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	client := &models.OAuthClient{
		ClientID:         uuid.New().String(),
		ClientSecretHash: string(hash),
		ClientName:       name,
		RedirectURIs:     append(models.StringArray{}, redirectURIs...),
		CreatedAt:        s.now(),
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create client: %w", err)
	}

	return client, secret, nil
}

// GetClient returns the client or ErrRecordNotFound.
func (s *Store) GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ValidateClient returns the client when secret matches its stored hash and
// nil otherwise. Lookup failures are logged and treated as a mismatch.
func (s *Store) ValidateClient(ctx context.Context, clientID, secret string) *models.OAuthClient {
	if clientID == "" || secret == "" {
		return nil
	}

	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			log.WithError(err).WithField("client_id", clientID).Error("client lookup failed")
		}
		return nil
	}

	if !client.ValidateClientSecret([]byte(secret)) {
		return nil
	}
	return client
}

// DeleteClient removes the client together with its authorization codes and
// refresh tokens in one transaction. It reports whether the client existed.
func (s *Store) DeleteClient(ctx context.Context, clientID string) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteClientsCascade(tx, []string{clientID})
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete client %s: %w", clientID, err)
	}
	return deleted, nil
}

// TouchClient records that the client was just issued tokens.
func (s *Store) TouchClient(ctx context.Context, clientID string) error {
	return s.db.WithContext(ctx).
		Model(&models.OAuthClient{}).
		Where("client_id = ?", clientID).
		Update("last_used_at", s.now()).Error
}

// deleteClientsCascade must run inside a transaction.
func deleteClientsCascade(tx *gorm.DB, clientIDs []string) (int64, error) {
	if len(clientIDs) == 0 {
		return 0, nil
	}
	if err := tx.Where("client_id IN ?", clientIDs).
		Delete(&models.AuthorizationCode{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("client_id IN ?", clientIDs).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("client_id IN ?", clientIDs).Delete(&models.OAuthClient{})
	return res.RowsAffected, res.Error
}
