package store

import (
	"context"

	"storefront/internal/models"
)

const userColumns = `id, username, email, created_at, uba_score, profile_completeness_score, last_uba_update`

// GetUserByID retrieves a buyer account
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err != nil {
		return nil, translate(err, "user %d", id)
	}
	return &user, nil
}

// GetUserByUsername retrieves a buyer account by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	if err != nil {
		return nil, translate(err, "user %q", username)
	}
	return &user, nil
}

// CreateUser inserts a buyer account
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, profile_completeness_score)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, uba_score`,
		u.Username, u.Email, u.ProfileCompletenessScore)
	return translate(row.Scan(&u.ID, &u.CreatedAt, &u.UBAScore), "create user")
}

const sellerColumns = `id, name, email, created_at, scs_score, last_scs_update`

// GetSellerByID retrieves a seller account
func (s *Store) GetSellerByID(ctx context.Context, id int64) (*models.Seller, error) {
	var seller models.Seller
	err := s.db.GetContext(ctx, &seller, "SELECT "+sellerColumns+" FROM sellers WHERE id = $1", id)
	if err != nil {
		return nil, translate(err, "seller %d", id)
	}
	return &seller, nil
}

// GetSellerByName retrieves a seller account by its unique name
func (s *Store) GetSellerByName(ctx context.Context, name string) (*models.Seller, error) {
	var seller models.Seller
	err := s.db.GetContext(ctx, &seller, "SELECT "+sellerColumns+" FROM sellers WHERE name = $1", name)
	if err != nil {
		return nil, translate(err, "seller %q", name)
	}
	return &seller, nil
}

// CreateSeller inserts a seller account
func (s *Store) CreateSeller(ctx context.Context, sl *models.Seller) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO sellers (name, email)
		VALUES ($1, $2)
		RETURNING id, created_at, scs_score`,
		sl.Name, sl.Email)
	return translate(row.Scan(&sl.ID, &sl.CreatedAt, &sl.SCSScore), "create seller")
}

// CreateSessionLog records a buyer login
func (s *Store) CreateSessionLog(ctx context.Context, l *models.UserSessionLog) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO user_session_logs (user_id, ip_address, device_info)
		VALUES ($1, $2, $3)
		RETURNING id, timestamp`,
		l.UserID, l.IPAddress, l.DeviceInfo)
	return translate(row.Scan(&l.ID, &l.Timestamp), "create session log")
}

// GetSessionLogs lists a buyer's logins, newest first
func (s *Store) GetSessionLogs(ctx context.Context, userID int64) ([]models.UserSessionLog, error) {
	logs := []models.UserSessionLog{}
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, user_id, ip_address, device_info, timestamp
		FROM user_session_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC`, userID)
	return logs, translate(err, "session logs of user %d", userID)
}
