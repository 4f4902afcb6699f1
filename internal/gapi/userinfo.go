package gapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Profile is the signed-in user's basic identity.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// UserInfo fetches the OpenID Connect profile of the token's owner.
func (c *Client) UserInfo(ctx context.Context) (*Profile, error) {
	c.logger.Debug("fetching user profile")

	resp, err := c.Do(ctx, http.MethodGet, c.endpoints.UserInfo, "", nil)
	if err != nil {
		return nil, fmt.Errorf("gapi: fetching user profile: %w", err)
	}
	defer resp.Body.Close()

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("gapi: decoding user profile: %w", err)
	}

	c.logger.Debug("user profile fetched", slog.String("email", p.Email))

	return &p, nil
}
