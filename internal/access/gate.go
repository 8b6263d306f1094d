package access

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"receiptgen/config"
	"receiptgen/internal/domain"
	"receiptgen/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Grant is the outcome of a successful access grant
type Grant struct {
	Message   string
	ExpiresAt *time.Time
}

// Gate decides who may run privileged commands and whether a user has
// completed the email prerequisite for the receipt workflow.
type Gate struct {
	cfg    *config.Config
	store  *repository.Store
	logger *zap.Logger
}

func NewGate(cfg *config.Config, store *repository.Store, logger *zap.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// AuthorizeAdmin is a plain identity check against the configured
// administrator. No delegation, no role hierarchy.
func (g *Gate) AuthorizeAdmin(actorID int64) bool {
	return actorID == g.cfg.AdminTelegramID
}

// Grant adds the access capability marker for the target user. Exactly one
// of forever or days must be supplied. Expiry is informational unless
// enforcement is switched on in the config.
func (g *Gate) Grant(ctx context.Context, targetID, grantedBy int64, forever bool, days int) (*Grant, error) {
	if !g.AuthorizeAdmin(grantedBy) {
		return nil, domain.ErrNotAuthorized
	}
	if forever == (days != 0) {
		return nil, domain.ErrInvalidGrantArguments
	}
	if !forever && days <= 0 {
		return nil, domain.ErrInvalidGrantArguments
	}

	var expiresAt *time.Time
	var message string
	if forever {
		message = "Access granted indefinitely."
	} else {
		t := time.Now().AddDate(0, 0, days)
		expiresAt = &t
		message = fmt.Sprintf("Access granted for %d days. Access will expire on %s.",
			days, t.Format("2006-01-02 15:04:05"))
	}

	if err := g.store.GrantAccess(ctx, targetID, grantedBy, expiresAt); err != nil {
		return nil, err
	}

	g.logger.Info("Access granted",
		zap.Int64("target_id", targetID),
		zap.Int64("granted_by", grantedBy),
		zap.Bool("forever", forever),
		zap.Int("days", days))

	return &Grant{Message: message, ExpiresAt: expiresAt}, nil
}

// HasAccess reports whether the user holds the capability marker
func (g *Gate) HasAccess(ctx context.Context, userID int64) (bool, error) {
	return g.store.HasAccess(ctx, userID)
}

// CheckAccess is HasAccess as a precondition: ErrAccessRequired when the
// user holds no grant.
func (g *Gate) CheckAccess(ctx context.Context, userID int64) error {
	ok, err := g.store.HasAccess(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccessRequired
	}
	return nil
}

// HasRegisteredEmail reports whether the user completed email setup
func (g *Gate) HasRegisteredEmail(userID int64) bool {
	_, ok := g.store.Email(userID)
	return ok
}

// RegisterEmail stores a user's email. One registration per user; a second
// attempt is rejected without touching the stored address.
func (g *Gate) RegisterEmail(ctx context.Context, userID int64, email string) error {
	if !IsValidEmail(email) {
		return domain.ErrInvalidEmail
	}
	return g.store.SetEmail(ctx, userID, email)
}

// IsValidEmail checks the address shape without talking to any mail server
func IsValidEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailPattern.MatchString(email)
}
