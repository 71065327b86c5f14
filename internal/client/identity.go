package client

import (
	"context"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/session"
)

type loginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// BuyerSessionInfo is the buyer profile and login history
type BuyerSessionInfo struct {
	User     models.User             `json:"user_data"`
	Sessions []models.UserSessionLog `json:"sessions"`
}

// LoginBuyer signs the buyer in and returns the path the buyer was on before
// being sent to login
func (c *Client) LoginBuyer(ctx context.Context, email, username string) (string, error) {
	if err := c.login(ctx, c.buyer, "/api/auth/login", email, username); err != nil {
		return "", err
	}
	return c.buyer.TakeReturnPath(), nil
}

// LoginSeller signs the seller in and returns the post-login path
func (c *Client) LoginSeller(ctx context.Context, email, username string) (string, error) {
	if err := c.login(ctx, c.seller, "/api/seller/login", email, username); err != nil {
		return "", err
	}
	return c.seller.TakeReturnPath(), nil
}

func (c *Client) login(ctx context.Context, sess *session.Session, path, email, username string) error {
	if err := sess.Begin(); err != nil {
		return err
	}

	var resp loginResponse
	err := c.send(ctx, call{
		method: http.MethodPost,
		path:   path,
		body:   loginRequest{Username: username, Email: email},
	}, &resp)
	if err != nil {
		sess.Fail()
		return err
	}
	return sess.Complete(resp.Token, session.Identity{Email: email})
}

// Logout drops both identities
func (c *Client) Logout() {
	c.buyer.Logout()
	c.seller.Logout()
}

// BuyerSession fetches the buyer profile and refreshes the displayed UBA score
func (c *Client) BuyerSession(ctx context.Context) (*BuyerSessionInfo, error) {
	var info BuyerSessionInfo
	if err := c.send(ctx, call{method: http.MethodGet, path: "/api/auth/session", sess: c.buyer}, &info); err != nil {
		return nil, err
	}
	c.buyer.UpdateIdentity(func(id *session.Identity) {
		id.Username = info.User.Username
		id.Email = info.User.Email
		score := info.User.UBAScore
		id.Score = &score
	})
	return &info, nil
}

// SellerSession fetches the seller profile and refreshes the displayed SCS
func (c *Client) SellerSession(ctx context.Context) (*models.Seller, error) {
	var seller models.Seller
	if err := c.send(ctx, call{method: http.MethodGet, path: "/api/seller/session", sess: c.seller}, &seller); err != nil {
		return nil, err
	}
	c.seller.UpdateIdentity(func(id *session.Identity) {
		id.Username = seller.Name
		score := seller.SCSScore
		id.Score = &score
	})
	return &seller, nil
}
