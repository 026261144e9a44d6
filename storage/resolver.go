// Package storage turns object-storage references from uploads into public
// URLs.
package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"food-order-service/apperr"
)

type Resolver interface {
	ResolveToURL(ctx context.Context, ref string) (string, error)
}

// PrefixResolver serves objects from a fixed base URL. References may be
// bare object keys or URLs already under the base.
type PrefixResolver struct {
	base *url.URL
}

func NewPrefixResolver(baseURL string) (*PrefixResolver, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperr.E(apperr.Internal, "storage base URL must be http(s), got %q", baseURL)
	}
	return &PrefixResolver{base: u}, nil
}

func (r *PrefixResolver) ResolveToURL(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apperr.E(apperr.InvalidPaymentProof, "proof of payment is required")
	}

	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil || u.Host != r.base.Host || u.Scheme != r.base.Scheme || hasDotDot(u.Path) ||
			!strings.HasPrefix(path.Clean(u.Path), r.base.Path+"/") {
			return "", apperr.E(apperr.InvalidPaymentProof, "proof of payment must be uploaded through the app")
		}
		return u.String(), nil
	}

	key := path.Clean("/" + ref)
	if key == "/" || hasDotDot(ref) {
		return "", apperr.E(apperr.InvalidPaymentProof, "invalid proof of payment reference")
	}
	u := *r.base
	u.Path = r.base.Path + key
	return u.String(), nil
}

// hasDotDot reports whether p has a ".." segment.
func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
