package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/models"
)

// pgUniqueViolation — код ошибки PostgreSQL для нарушения уникального ограничения.
const pgUniqueViolation = "23505"

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
// Повторная регистрация занятой почты возвращает apperr.ErrDuplicateIdentity.
func (s *Storage) RegisterUser(ctx context.Context, email, passwordHash string) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (email, password_hash)
			  VALUES ($1, $2)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query, email, passwordHash).Scan(&newUID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", fmt.Errorf("%s: %w", op, apperr.ErrDuplicateIdentity)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByEmail возвращает пользователя по его почте.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, password_hash, billing_customer_id, created_at
			  FROM users
			  WHERE email = $1`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, email)

	var billingCustomerID sql.NullString
	if err := row.Scan(&u.UID, &u.Email, &u.PasswordHash, &billingCustomerID, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if billingCustomerID.Valid {
		u.BillingCustomerID = &billingCustomerID.String
	}
	return u, nil
}

// GetOrCreateUserByEmail возвращает пользователя по почте, создавая запись,
// если её ещё нет. Используется при обработке события завершённой оплаты:
// покупка могла произойти до регистрации в надстройке.
func (s *Storage) GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetOrCreateUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (email, password_hash)
			  VALUES ($1, '')
			  ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
			  RETURNING uid, email, password_hash, billing_customer_id, created_at;`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, email)

	var billingCustomerID sql.NullString
	if err := row.Scan(&u.UID, &u.Email, &u.PasswordHash, &billingCustomerID, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if billingCustomerID.Valid {
		u.BillingCustomerID = &billingCustomerID.String
	}
	return u, nil
}

// SetBillingCustomerID сохраняет идентификатор клиента платёжного провайдера.
func (s *Storage) SetBillingCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetBillingCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET billing_customer_id = $1
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, customerID, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
