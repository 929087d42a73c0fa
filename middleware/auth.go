package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/constants"
	"github.com/jibzus/bluefleet-sub001/httpServices/sso"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/services/capability"
	"github.com/jibzus/bluefleet-sub001/types"
)

const actorLocal = "actor"

// UserDirectory resolves a role for tokens that carry no permissions
type UserDirectory interface {
	ResolveUser(ctx context.Context, id string) (*sso.User, error)
}

type Authenticator struct {
	verifier  *verifier
	directory UserDirectory
}

// NewAuthenticator builds the bearer token middleware factory. directory may be nil.
func NewAuthenticator(cfg config.AuthConfig, directory UserDirectory) *Authenticator {
	return &Authenticator{
		verifier: &verifier{
			secret:       []byte(cfg.JWTSecret),
			publicKeyURL: cfg.PublicKeyURL,
			client:       &http.Client{Timeout: 10 * time.Second},
		},
		directory: directory,
	}
}

// RequirePermissions lets the request through when the actor holds any of the
// permissions. constants.PermAny only requires a valid token.
func (a *Authenticator) RequirePermissions(permissions ...string) fiber.Handler {
	return a.isAuthenticated(permissions)
}

func (a *Authenticator) isAuthenticated(requiredPermissions []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Message: "Authorization token missing or malformed",
				Status:  fiber.StatusUnauthorized,
			})
		}

		claims, err := a.verifier.VerifyJWT(token)
		if err != nil {
			logger.Warning("JWT verification failed: " + err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Message: "Session expired. Login again.",
				Status:  fiber.StatusUnauthorized,
			})
		}

		actor := a.actorFromClaims(c.UserContext(), claims)
		if actor.ID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Message: "Token has no subject",
				Status:  fiber.StatusUnauthorized,
			})
		}
		if !allowed(actor, requiredPermissions) {
			return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
				Message: "Insufficient permissions",
				Status:  fiber.StatusForbidden,
			})
		}

		c.Locals("user", claims)
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		// cookie fallback for browser sessions
		token := c.Cookies("access")
		return token, token != ""
	}
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
		return "", false
	}
	return tokenParts[1], true
}

func allowed(actor capability.Actor, required []string) bool {
	for _, p := range required {
		if p == constants.PermAny {
			return true
		}
	}
	return actor.HasAny(required...)
}

// actorFromClaims reads the subject and permissions. Tokens without a
// permissions claim fall back to the role claim, then to the user directory.
func (a *Authenticator) actorFromClaims(ctx context.Context, claims jwt.MapClaims) capability.Actor {
	id := stringClaim(claims, "sub")
	if id == "" {
		id = stringClaim(claims, "uid")
	}
	if id == "" {
		id = stringClaim(claims, "Uid")
	}

	perms := extractUserPermissionsFromClaims(claims)
	if len(perms) == 0 {
		role := stringClaim(claims, "role")
		if role == "" && a.directory != nil && id != "" {
			user, err := a.directory.ResolveUser(ctx, id)
			if err != nil {
				logger.Warning("User directory lookup for " + id + " failed: " + err.Error())
			} else {
				role = user.Role
			}
		}
		perms = constants.RolePermissions[strings.ToLower(role)]
	}
	return capability.NewActor(id, perms...)
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}

func extractUserPermissionsFromClaims(claims jwt.MapClaims) []string {
	userPermissions, ok := claims["permissions"].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, p := range userPermissions {
		if perm, ok := p.(string); ok {
			out = append(out, perm)
		}
	}
	return out
}

// GetActor returns the authenticated actor, or the zero Actor on public routes
func GetActor(c *fiber.Ctx) capability.Actor {
	actor, _ := c.Locals(actorLocal).(capability.Actor)
	return actor
}
