package client

import (
	"context"
	"net/http"
)

// User is the signed in console account.
type User struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
}

// IsAdmin reports whether the account may edit the catalog.
func (u User) IsAdmin() bool {
	return u.SystemRole == "admin"
}

// Session is the result of a login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a session token. The client does not keep
// the token; hand it to a TokenSource.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out)
	return out, err
}

// Me returns the account behind the current token.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

// ChatMessage is one entry of the assistant conversation.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Chat asks the assistant a question with the prior conversation.
func (c *Client) Chat(ctx context.Context, message string, history []ChatMessage) (string, error) {
	if history == nil {
		history = []ChatMessage{}
	}
	body := struct {
		Message string        `json:"message"`
		History []ChatMessage `json:"history"`
	}{message, history}
	var out struct {
		Text string `json:"text"`
	}
	err := c.do(ctx, http.MethodPost, "/api/chat", body, &out)
	return out.Text, err
}
