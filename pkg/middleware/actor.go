package middleware

import (
	"net/http"
	"regexp"

	"github.com/utafrali/catalog-search/pkg/logger"
)

// ActorHeader carries the id of the user acting through the gateway.
const ActorHeader = "X-User-ID"

var actorPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// Actor stores the gateway-supplied user id on the request context so it
// reaches log lines and audit entries. Malformed ids are ignored.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(ActorHeader); actorPattern.MatchString(id) {
			r = r.WithContext(logger.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
