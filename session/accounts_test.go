package session

import (
	"context"
	"errors"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/service"
)

// accountAuthenticator signs in against the local account table and issues
// tokens itself, so the session can be driven without a server.
type accountAuthenticator struct {
	Accounts *service.AccountService
	Auth     *config.AuthConfig
}

func (a *accountAuthenticator) Authenticate(ctx context.Context, email, password string) (*model.User, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	user, err := a.Accounts.Verify(email, password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	token, _, err := middleware.GenerateToken(user, a.Auth)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
