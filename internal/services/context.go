package services

import "context"

// ActorFromContext reads the identity placed on the request context by the
// auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	id, ok := ctx.Value("userID").(int)
	if !ok || id <= 0 {
		return Actor{}, false
	}
	role, ok := ctx.Value("userRole").(string)
	if !ok || role == "" {
		return Actor{}, false
	}
	return Actor{ID: id, Role: role}, true
}
