package credentials

import (
	"net/http"
)

// FormFieldEmail and FormFieldPassword name the login form fields the
// normalizer rewrites.
const (
	FormFieldEmail    = "email"
	FormFieldPassword = "password"
)

// Normalizer rewrites the login request's password field to its one-way
// digest before the authentication handler runs. Only the named login path is
// touched; every other field and request passes through unchanged.
func Normalizer(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != loginPath {
				next.ServeHTTP(w, r)
				return
			}
			if err := r.ParseForm(); err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			identifier := r.PostForm.Get(FormFieldEmail)
			plaintext := r.PostForm.Get(FormFieldPassword)
			if identifier != "" && plaintext != "" {
				digest := Digest(identifier, plaintext)
				r.PostForm.Set(FormFieldPassword, digest)
				if r.Form != nil {
					r.Form.Set(FormFieldPassword, digest)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
