package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware injects a localizer into every request context and reports the
// chosen language in the Content-Language response header. The client's
// Accept-Language header wins when a matching locale exists; otherwise the
// default language passed to Init is used.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept := r.Header.Get("Accept-Language")
			if lang := negotiate(accept); lang != "" {
				w.Header().Set("Content-Language", lang)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(accept))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// negotiate returns the base language of the best loaded locale for an
// Accept-Language value. The bundle's default language comes first in its
// tag list, so it is also the matcher's fallback.
func negotiate(accept string) string {
	if bundle == nil {
		return ""
	}
	matcher := language.NewMatcher(bundle.LanguageTags())
	tag, _ := language.MatchStrings(matcher, accept)
	base, _ := tag.Base()
	return base.String()
}
