// Package accounts is a small file-backed credential store for the CLI.
// Passwords are hashed with bcrypt; the account file is a JSON document
// keyed by username, rewritten atomically on every change.
package accounts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/KurniaRadhit/Stockmate/internal/errs"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	ErrAccountExists      = errs.New("account already exists")
	ErrAccountNotFound    = errs.New("account not found")
	ErrInvalidCredentials = errs.New("invalid credentials")
)

type Store struct {
	path string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "create account directory"), errs.ErrPersistence)
	}
	return &Store{path: filepath.Join(dir, "accounts.json")}, nil
}

func (s *Store) load() (map[string]Account, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Account{}, nil
		}
		return nil, errs.Mark(errs.Wrap(err, "read account file"), errs.ErrPersistence)
	}
	if len(raw) == 0 {
		return map[string]Account{}, nil
	}

	accounts := map[string]Account{}
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "decode account file"), errs.ErrPersistence)
	}
	return accounts, nil
}

func (s *Store) save(accounts map[string]Account) error {
	raw, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return errs.Mark(errs.Wrap(err, "encode account file"), errs.ErrPersistence)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".accounts-*.json")
	if err != nil {
		return errs.Mark(errs.Wrap(err, "create temp account file"), errs.ErrPersistence)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.Mark(errs.Wrap(err, "write temp account file"), errs.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errs.Mark(errs.Wrap(err, "close temp account file"), errs.ErrPersistence)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errs.Mark(errs.Wrap(err, "replace account file"), errs.ErrPersistence)
	}
	return nil
}

func (s *Store) Register(username, password string, role Role) (Account, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return Account{}, errs.Mark(errs.New("username must be at least 3 characters"), errs.ErrValidation)
	}
	if len(password) < 6 {
		return Account{}, errs.Mark(errs.New("password must be at least 6 characters"), errs.ErrValidation)
	}
	if !role.Valid() {
		return Account{}, errs.Mark(errs.Newf("unknown role %q", role), errs.ErrValidation)
	}

	accounts, err := s.load()
	if err != nil {
		return Account{}, err
	}
	key := strings.ToLower(username)
	if _, exists := accounts[key]; exists {
		return Account{}, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, errs.Wrap(err, "hash password")
	}

	account := Account{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().Truncate(time.Second),
	}
	accounts[key] = account
	if err := s.save(accounts); err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *Store) Authenticate(username, password string) (Account, error) {
	accounts, err := s.load()
	if err != nil {
		return Account{}, err
	}

	account, ok := accounts[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

func (s *Store) ChangePassword(username, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return errs.Mark(errs.New("password must be at least 6 characters"), errs.ErrValidation)
	}

	account, err := s.Authenticate(username, oldPassword)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return errs.Wrap(err, "hash password")
	}

	accounts, err := s.load()
	if err != nil {
		return err
	}
	account.PasswordHash = string(hash)
	accounts[strings.ToLower(account.Username)] = account
	return s.save(accounts)
}

func (s *Store) Delete(username string) error {
	accounts, err := s.load()
	if err != nil {
		return err
	}
	key := strings.ToLower(strings.TrimSpace(username))
	if _, ok := accounts[key]; !ok {
		return ErrAccountNotFound
	}
	delete(accounts, key)
	return s.save(accounts)
}

func (s *Store) List() ([]Account, error) {
	accounts, err := s.load()
	if err != nil {
		return nil, err
	}

	list := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, account)
	}
	slices.SortFunc(list, func(a, b Account) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return list, nil
}
