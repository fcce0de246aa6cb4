package service

import (
	"context"

	"scribe/internal/featureflags"
	"scribe/internal/models"
)

// Authorizer decides whether a user may modify content owned by a post's author.
type Authorizer func(ctx context.Context, userID, authorID uint) error

// AllowAuthenticated lets any authenticated user write.
func AllowAuthenticated(_ context.Context, userID, _ uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	return nil
}

// FlagAuthorizer allows any authenticated user unless the author_only_writes
// flag is on for them, in which case only the author may write.
func FlagAuthorizer(flags *featureflags.Manager) Authorizer {
	return func(ctx context.Context, userID, authorID uint) error {
		if err := AllowAuthenticated(ctx, userID, authorID); err != nil {
			return err
		}
		if flags.Enabled(featureflags.AuthorOnlyWrites, userID) && userID != authorID {
			return models.NewForbiddenError("Only the author can modify this post")
		}
		return nil
	}
}
