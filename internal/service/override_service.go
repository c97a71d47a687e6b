package service

import (
	"fmt"

	"github.com/frontdesk/guestlog/internal/repository"
	"github.com/frontdesk/guestlog/internal/security"
)

// OverrideService verifies the shared manager secret that gates irreversible
// actions. This is a capability check, not an identity check: the secret is
// accepted if it matches the password hash of any currently active manager
// account, regardless of who is logged in. Kept separate from the session
// gate so it can be audited and rate-limited on its own.
type OverrideService struct {
	userRepo *repository.UserRepository
	hasher   *security.PasswordHasher
}

// NewOverrideService creates a new override service
func NewOverrideService(userRepo *repository.UserRepository) *OverrideService {
	return &OverrideService{
		userRepo: userRepo,
		hasher:   security.NewPasswordHasher(),
	}
}

// VerifySecret reports whether the submitted secret matches any active
// manager's password. When no managers exist, one dummy comparison keeps
// the latency shape of a real check.
func (s *OverrideService) VerifySecret(secret string) (bool, error) {
	hashes, err := s.userRepo.ActiveManagerHashes()
	if err != nil {
		return false, fmt.Errorf("failed to load manager credentials: %w", err)
	}

	if len(hashes) == 0 {
		s.hasher.VerifyDummy(secret)
		return false, nil
	}

	matched := false
	for _, hash := range hashes {
		ok, err := s.hasher.Verify(secret, hash)
		if err != nil {
			continue
		}
		if ok {
			matched = true
		}
	}

	return matched, nil
}
