package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type (
	// ConnID identifies the underlying transport connection. It is
	// supplied by the adapter and unique per connection, not per person.
	ConnID string

	// UserID is the stable logical identity of a participant, minted
	// server-side. A reconnect gets a fresh ConnID and a fresh UserID;
	// there is no continuity between connections.
	UserID string
)

type Role string

const (
	RoleHost Role = "host"
	RoleUser Role = "user"
)

// Participant is one connected endpoint inside a noise-box.
// Hosts carry no username.
type Participant struct {
	ConnID   ConnID `json:"-"`
	UserID   UserID `json:"userid"`
	Role     Role   `json:"role"`
	Username string `json:"username"`
}

func NewHost(connID ConnID) *Participant {
	return &Participant{
		ConnID: connID,
		UserID: UserID(uuid.NewString()),
		Role:   RoleHost,
	}
}

// NewUser creates a user participant with a blank username; clients
// pick a name later via a rename.
func NewUser(connID ConnID) *Participant {
	return &Participant{
		ConnID: connID,
		UserID: UserID(uuid.NewString()),
		Role:   RoleUser,
	}
}

func (p *Participant) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	p.Username = username
	return nil
}
