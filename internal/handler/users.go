package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/flight-gateway/internal/domain/user"
)

type registerRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// register creates an account and returns it without the password.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "login":
			req.Login, err = d.Str()
		case "email":
			req.Email, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	u, err := h.users.Register(r.Context(), user.RegisterRequest{
		Login:    req.Login,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.Wrap(err, "register")
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, u) })
	return nil
}

type authorizeRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// authorize exchanges form credentials for a bearer token, following the
// OAuth2 password grant form. Other grant fields are ignored.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		if tooLarge(err) {
			return errBodyTooLarge
		}
		return badRequest("invalid form body: %s", err)
	}
	req := authorizeRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	u, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		return errors.Wrap(err, "authenticate")
	}
	token, err := h.tokens.Issue(u.ID, u.Login)
	if err != nil {
		return errors.Wrap(err, "issue token")
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("access_token", func(e *jx.Encoder) { e.Str(token) })
			e.Field("token_type", func(e *jx.Encoder) { e.Str("bearer") })
		})
	})
	return nil
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) error {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
	return nil
}
