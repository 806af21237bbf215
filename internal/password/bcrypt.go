package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

const (
	// MinCost keeps hashing expensive enough to resist offline guessing.
	MinCost = 10
	// MaxCost bounds login latency.
	MaxCost = 15
	// MaxLength is the longest password bcrypt accepts, in bytes.
	MaxLength = 72

	MsgTooLong = "Password must be at most 72 bytes"
)

// Bcrypt implements PasswordHasher.
type Bcrypt struct {
	cost  int
	dummy string
}

var _ model.PasswordHasher = (*Bcrypt)(nil)

// NewBcrypt creates a hasher with rounds clamped into [MinCost, MaxCost].
func NewBcrypt(rounds int, logger *logger.Logger) (*Bcrypt, error) {
	cost := ClampCost(rounds)
	if cost != rounds {
		logger.Warn("bcrypt salt rounds out of range, clamping",
			"configured", rounds,
			"using", cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("authkeeper-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Bcrypt{cost: cost, dummy: string(dummy)}, nil
}

// ClampCost returns rounds limited to the supported range.
func ClampCost(rounds int) int {
	switch {
	case rounds < MinCost:
		return MinCost
	case rounds > MaxCost:
		return MaxCost
	default:
		return rounds
	}
}

// Cost returns the effective bcrypt cost.
func (b *Bcrypt) Cost() int {
	return b.cost
}

func (b *Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apierror.NewErrValidation(MsgTooLong, map[string]string{"password": MsgTooLong})
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
}

func (b *Bcrypt) Dummy() string {
	return b.dummy
}
