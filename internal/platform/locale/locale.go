// Package locale negotiates the display language of archive content. The archive is bilingual:
// Arabic and English.
package locale

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/memorial-heritage/api/internal/platform/requestctx"
	"github.com/memorial-heritage/api/internal/platform/textutil"
)

const (
	Arabic  = "ar"
	English = "en"
)

var supported = []string{Arabic, English}

// Negotiator picks ar or en from explicit query values and Accept-Language headers.
type Negotiator struct {
	fallback string
	matcher  language.Matcher
}

// NewNegotiator builds a negotiator that falls back to defaultLocale (ar when unsupported).
func NewNegotiator(defaultLocale string) *Negotiator {
	fallback := Arabic
	if strings.EqualFold(strings.TrimSpace(defaultLocale), English) {
		fallback = English
	}
	tags := []language.Tag{language.Arabic, language.English}
	if fallback == English {
		tags = []language.Tag{language.English, language.Arabic}
	}
	return &Negotiator{fallback: fallback, matcher: language.NewMatcher(tags)}
}

// Default returns the fallback locale.
func (n *Negotiator) Default() string {
	return n.fallback
}

// Negotiate returns the locale for an explicit lang value, or the Accept-Language header when
// lang is empty or unparseable.
func (n *Negotiator) Negotiate(lang, acceptLanguage string) string {
	if tag, err := language.Parse(strings.TrimSpace(lang)); err == nil {
		if loc, ok := n.match(tag); ok {
			return loc
		}
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return n.fallback
	}
	if loc, ok := n.match(tags...); ok {
		return loc
	}
	return n.fallback
}

func (n *Negotiator) match(tags ...language.Tag) (string, bool) {
	tag, _, confidence := n.matcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	base, _ := tag.Base()
	for _, loc := range supported {
		if base.String() == loc {
			return loc, true
		}
	}
	return "", false
}

// Middleware stores the negotiated locale on the request context.
func Middleware(n *Negotiator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := n.Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Language", loc)
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), loc)))
		})
	}
}

// Pick returns the value for loc, falling back to the other language when it is blank.
func Pick(loc, en, ar string) string {
	if loc == English {
		return textutil.FirstNonEmpty(en, ar)
	}
	return textutil.FirstNonEmpty(ar, en)
}
