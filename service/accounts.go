package service

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/model"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown account and a wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountService checks credentials against the fixed account table
type AccountService struct {
	cfg *config.Config
}

func NewAccountService(cfg *config.Config) *AccountService {
	return &AccountService{cfg: cfg}
}

// Verify returns the account for email when password matches.
func (s *AccountService) Verify(email, password string) (*model.User, error) {
	u := s.cfg.FindUser(strings.TrimSpace(email))
	if u == nil {
		// Burn comparable time so unknown accounts are not distinguishable
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if !passwordMatches(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return toModelUser(u), nil
}

// Lookup returns the account with the given id
func (s *AccountService) Lookup(id string) (*model.User, bool) {
	for i := range s.cfg.Users {
		if s.cfg.Users[i].ID == id {
			return toModelUser(&s.cfg.Users[i]), true
		}
	}
	return nil, false
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("invoicedesk"), bcrypt.MinCost)

func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func toModelUser(u *config.User) *model.User {
	return &model.User{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       model.Role(u.Role),
		Department: u.Department,
	}
}
