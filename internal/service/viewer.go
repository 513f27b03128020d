package service

import (
	"context"
	"time"

	"newsadvance/internal/cache"
	"newsadvance/internal/models"
	"newsadvance/internal/repository"
)

// Viewer is the principal a request runs as. A nil *Viewer is anonymous.
type Viewer struct {
	UserID   uint
	Username string
	IsStaff  bool
}

// Authenticated reports whether v identifies a user.
func (v *Viewer) Authenticated() bool {
	return v != nil && v.UserID != 0
}

func (v *Viewer) id() uint {
	if v == nil {
		return 0
	}
	return v.UserID
}

func (v *Viewer) staff() bool {
	return v != nil && v.IsStaff
}

// PrincipalResolver turns a verified token subject into a Viewer. Regular
// users are cached briefly. Staff principals are read from the database on
// every request so a demotion made from another process applies at once.
type PrincipalResolver struct {
	users repository.UserRepository
	cache *cache.Local[uint, Viewer]
}

// NewPrincipalResolver returns a resolver caching up to size principals for ttl.
func NewPrincipalResolver(users repository.UserRepository, size int, ttl time.Duration) (*PrincipalResolver, error) {
	c, err := cache.NewLocal[uint, Viewer](size, ttl)
	if err != nil {
		return nil, err
	}
	return &PrincipalResolver{users: users, cache: c}, nil
}

// Resolve loads the viewer for userID. Unknown users are Unauthenticated.
func (r *PrincipalResolver) Resolve(ctx context.Context, userID uint) (*Viewer, error) {
	if userID == 0 {
		return nil, models.NewUnauthenticatedError()
	}
	if v, ok := r.cache.Get(userID); ok {
		return &v, nil
	}
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthenticatedError()
		}
		return nil, err
	}
	v := Viewer{UserID: user.ID, Username: user.Username, IsStaff: user.IsStaff}
	if !v.IsStaff {
		r.cache.Set(userID, v)
	}
	return &v, nil
}

// Invalidate drops a cached principal, e.g. after a staff change.
func (r *PrincipalResolver) Invalidate(userID uint) {
	r.cache.Delete(userID)
}
