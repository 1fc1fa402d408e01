package identitymock

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("bad credentials")

type Authority struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Role struct {
	Name        string      `json:"name"`
	Authorities []Authority `json:"authorities"`
}

type user struct {
	passwordHash string
	roles        []Role
}

// UserStore is an in-memory credential store with bcrypt hashed passwords.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]user
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]user)}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *UserStore) Add(username, password string, roles ...Role) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = user{passwordHash: hash, roles: roles}
	return nil
}

// Authenticate checks the password and returns the user's roles.
func (s *UserStore) Authenticate(username, password string) ([]Role, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok || !CheckPasswordHash(password, u.passwordHash) {
		return nil, ErrBadCredentials
	}
	return u.roles, nil
}

// Roles returns the roles of a known user.
func (s *UserStore) Roles(username string) ([]Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	return u.roles, ok
}

var (
	readAuthority   = Authority{ID: 1, Name: "USER_DETAILS_READ"}
	writeAuthority  = Authority{ID: 2, Name: "USER_DETAILS_WRITE"}
	deleteAuthority = Authority{ID: 3, Name: "USER_DETAILS_DELETE"}
	adminAuthority  = Authority{ID: 4, Name: "VEHICLE_API_ADMIN"}
)

// Seed adds the development users: reader, editor and admin, all with
// password "password".
func (s *UserStore) Seed() error {
	userRole := Role{Name: "ROLE_USER", Authorities: []Authority{readAuthority}}
	editorRole := Role{Name: "ROLE_EDITOR", Authorities: []Authority{readAuthority, writeAuthority, deleteAuthority}}
	adminRole := Role{Name: "ROLE_ADMIN", Authorities: []Authority{adminAuthority}}

	if err := s.Add("reader", "password", userRole); err != nil {
		return err
	}
	if err := s.Add("editor", "password", userRole, editorRole); err != nil {
		return err
	}
	return s.Add("admin", "password", userRole, editorRole, adminRole)
}
