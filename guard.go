package passwordless

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

// Decision is the route guard verdict for a protected view.
type Decision int

const (
	// DecisionPending means the session is not resolved yet: render a
	// loading indicator, do not redirect.
	DecisionPending Decision = iota
	// DecisionDenied means the protected content must not render, not
	// even for a single frame; navigation goes to a safe fallback.
	DecisionDenied
	// DecisionAllowed means the protected children may render.
	DecisionAllowed
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionDenied:
		return "denied"
	case DecisionAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// RouteGuard gates rendering of protected view subtrees on the current
// session and a required role.
//
// The denial check is evaluated twice on purpose: Evaluate is the direct
// render guard host view layers call before committing any markup, and
// RequireRole is the side-effecting middleware that performs the
// redirect. Navigation is asynchronous relative to rendering, so both
// are necessary to guarantee protected content never flashes.
type RouteGuard struct {
	source      SessionSource
	cfg         Config
	Logger      Logger
	PendingView string
}

// NewRouteGuard builds a guard over the given session source.
func NewRouteGuard(source SessionSource, cfg Config) *RouteGuard {
	return &RouteGuard{
		source:      source,
		cfg:         cfg,
		Logger:      defLogger{},
		PendingView: "loading",
	}
}

// Evaluate yields the render decision for a view requiring the given
// role. An unresolved session is Pending, never Denied, so callers do not
// redirect before resolution completes.
func (g *RouteGuard) Evaluate(required UserRole) Decision {
	if g.source == nil {
		return DecisionDenied
	}

	if g.source.IsLoading() {
		return DecisionPending
	}

	session := g.source.Current()
	if session == nil {
		return DecisionDenied
	}

	if !session.IsAtLeast(required) {
		return DecisionDenied
	}

	return DecisionAllowed
}

// RequireRole returns middleware protecting a route subtree. Pending
// renders the loading view without touching the handler chain; Denied
// records the rejected route and redirects to the login route, never
// invoking the next handler.
func (g *RouteGuard) RequireRole(required UserRole) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			switch g.Evaluate(required) {
			case DecisionAllowed:
				return next(ctx)
			case DecisionPending:
				return ctx.Render(g.PendingView, router.ViewContext{})
			default:
				return g.deny(ctx, required)
			}
		}
	}
}

func (g *RouteGuard) deny(ctx router.Context, required UserRole) error {
	g.Logger.Info(
		"Denied protected route",
		"required", required,
		"path", ctx.OriginalURL(),
	)

	g.SetRedirect(ctx)

	statusCode := http.StatusSeeOther
	if ctx.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return ctx.Redirect(g.loginRoute(), statusCode)
}

// SetRedirect remembers the rejected route so a later successful login
// can navigate back to it.
func (g *RouteGuard) SetRedirect(ctx router.Context) {
	rejectedRoute := g.rejectedRouteKey()

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered rejected route, falling back to def.
func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := g.rejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return g.rejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

func (g *RouteGuard) cookieDel(ctx router.Context, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) loginRoute() string {
	if g.cfg != nil && g.cfg.GetLoginRoute() != "" {
		return g.cfg.GetLoginRoute()
	}
	return "/login"
}

func (g *RouteGuard) rejectedRouteKey() string {
	if g.cfg != nil && g.cfg.GetRejectedRouteKey() != "" {
		return g.cfg.GetRejectedRouteKey()
	}
	return "rejected_route"
}

func (g *RouteGuard) rejectedRouteDefault() string {
	if g.cfg != nil && g.cfg.GetRejectedRouteDefault() != "" {
		return g.cfg.GetRejectedRouteDefault()
	}
	return "/"
}
