package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const defaultProfileCompleteness = 0.5

// AuthService issues and validates buyer and seller tokens. The two kinds
// carry different audiences and are never interchangeable.
type AuthService struct {
	accounts AccountRepository
	secret   []byte
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(accounts AccountRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		accounts: accounts,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   util.Named("auth"),
		now:      time.Now,
	}
}

// LoginRequest is the body of both login endpoints. Username defaults to the
// local part of the email.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ClientInfo describes where a login came from
type ClientInfo struct {
	IPAddress  string
	DeviceInfo string
}

func (r *LoginRequest) normalize() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	if r.Email == "" {
		return invalid("email is required")
	}
	if r.Username == "" {
		r.Username = strings.SplitN(r.Email, "@", 2)[0]
	}
	if r.Username == "" {
		return invalid("username is required")
	}
	return nil
}

// LoginBuyer signs a buyer in, creating the account on first login, and
// records the session
func (s *AuthService) LoginBuyer(ctx context.Context, req LoginRequest, info ClientInfo) (string, *models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.LoginBuyer")
	defer span.End()

	if err := req.normalize(); err != nil {
		return "", nil, err
	}

	user, err := s.accounts.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{
			Username:                 req.Username,
			Email:                    req.Email,
			ProfileCompletenessScore: defaultProfileCompleteness,
		}
		err = s.accounts.CreateUser(ctx, user)
		if errors.Is(err, store.ErrDuplicate) {
			user, err = s.accounts.GetUserByUsername(ctx, req.Username)
		}
		if err == nil {
			s.logger.Info("buyer account created", zap.Int64("user_id", user.ID))
		}
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load buyer: %w", err)
	}

	token, err := session.Sign(session.NewClaims(session.Buyer, user.ID, user.Username, s.ttl, s.now()), s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if err := s.accounts.CreateSessionLog(ctx, &models.UserSessionLog{
		UserID:     user.ID,
		IPAddress:  info.IPAddress,
		DeviceInfo: info.DeviceInfo,
	}); err != nil {
		s.logger.Error("failed to record session", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	util.LoginsTotal.WithLabelValues(string(session.Buyer)).Inc()
	return token, user, nil
}

// LoginSeller signs a seller in, creating the account on first login
func (s *AuthService) LoginSeller(ctx context.Context, req LoginRequest) (string, *models.Seller, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.LoginSeller")
	defer span.End()

	if err := req.normalize(); err != nil {
		return "", nil, err
	}

	seller, err := s.accounts.GetSellerByName(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		seller = &models.Seller{Name: req.Username, Email: req.Email}
		err = s.accounts.CreateSeller(ctx, seller)
		if errors.Is(err, store.ErrDuplicate) {
			seller, err = s.accounts.GetSellerByName(ctx, req.Username)
		}
		if err == nil {
			s.logger.Info("seller account created", zap.Int64("seller_id", seller.ID))
		}
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load seller: %w", err)
	}

	token, err := session.Sign(session.NewClaims(session.Seller, seller.ID, seller.Name, s.ttl, s.now()), s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	util.LoginsTotal.WithLabelValues(string(session.Seller)).Inc()
	return token, seller, nil
}

// ValidateBuyerToken resolves a bearer token to a buyer account
func (s *AuthService) ValidateBuyerToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := session.Verify(token, s.secret, session.Buyer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.accounts.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateSellerToken resolves a bearer token to a seller account
func (s *AuthService) ValidateSellerToken(ctx context.Context, token string) (*models.Seller, error) {
	claims, err := session.Verify(token, s.secret, session.Seller)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	seller, err := s.accounts.GetSellerByID(ctx, claims.SellerID)
	if err != nil {
		return nil, err
	}
	return seller, nil
}

// BuyerSession returns the buyer profile and login history
func (s *AuthService) BuyerSession(ctx context.Context, userID int64) (*models.User, []models.UserSessionLog, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.BuyerSession")
	defer span.End()

	user, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := s.accounts.GetSessionLogs(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, logs, nil
}

// SellerSession returns the seller profile
func (s *AuthService) SellerSession(ctx context.Context, sellerID int64) (*models.Seller, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SellerSession")
	defer span.End()

	return s.accounts.GetSellerByID(ctx, sellerID)
}
