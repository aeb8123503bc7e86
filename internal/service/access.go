package service

import (
	"time"

	"sharelink/model"
	"sharelink/utils"
)

// AccessGate decides whether a caller may read or manage a link.
type AccessGate struct {
	now func() time.Time
}

func NewAccessGate(now func() time.Time) *AccessGate {
	if now == nil {
		now = time.Now
	}
	return &AccessGate{now: now}
}

// CheckAccess applies existence, then expiry, then password. An expired link is reported
// as expired even when the password is wrong.
func (g *AccessGate) CheckAccess(link *model.ShareLink, password string) error {
	if link == nil {
		return ErrNotFound
	}
	if link.ExpiredAt(g.now()) {
		return ErrExpired
	}
	if link.PasswordProtected() {
		if password == "" || !utils.CheckPassword(password, *link.PasswordHash) {
			return ErrUnauthorized
		}
	}
	return nil
}

// CheckOwner allows only the named owner of an owned link. Expiry is not considered.
func (g *AccessGate) CheckOwner(link *model.ShareLink, caller string) error {
	if caller == "" {
		return ErrUnauthorized
	}
	if link == nil {
		return ErrNotFound
	}
	if !link.Owner().Is(caller) {
		return ErrForbidden
	}
	return nil
}
