package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/quotesapi/internal/auth"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt limits passwords by bytes, max counts runes
	if err := v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return v
}

// decode reads a JSON body into dst and validates it, writing the error
// response itself when it returns false.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// userView is the public representation of an account.
type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewOf(u *auth.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Surname:   u.Surname,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

type message struct {
	Message string `json:"message"`
}

type signUpRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Surname  string `json:"surname" validate:"max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,pwbytes"`
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,pwbytes"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,jwt"`
}

type resetTokenRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	ResetPasswordToken string `json:"resetPasswordToken" validate:"required,jwt"`
	NewPassword        string `json:"newPassword" validate:"required,min=6,pwbytes"`
}

func (a *App) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if !a.decode(w, r, &in) {
		return
	}
	user, err := a.auth.SignUp(r.Context(), auth.SignUpInput{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Surname:  in.Surname,
	})
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, viewOf(user))
}

func (a *App) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if !a.decode(w, r, &in) {
		return
	}
	pair, err := a.auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, pair)
}

func (a *App) HandleRefreshTokens(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if !a.decode(w, r, &in) {
		return
	}
	pair, err := a.auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, pair)
}

func (a *App) HandleSendResetPasswordToken(w http.ResponseWriter, r *http.Request) {
	var in resetTokenRequest
	if !a.decode(w, r, &in) {
		return
	}
	msg, err := a.auth.SendResetToken(r.Context(), in.Email)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, message{msg})
}

func (a *App) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordRequest
	if !a.decode(w, r, &in) {
		return
	}
	if err := a.auth.ResetPassword(r.Context(), in.ResetPasswordToken, in.NewPassword); err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, message{"Password has been reset."})
}

func (a *App) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if !a.decode(w, r, &in) {
		return
	}
	user, err := a.auth.Activate(r.Context(), in.Email, in.Password)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(user))
}

// HandleTokenValidate reports whether the bearer access token is valid.
func (a *App) HandleTokenValidate(w http.ResponseWriter, r *http.Request) {
	sub, err := a.guard.Subject(r.Header)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"valid":  true,
		"userID": sub,
	})
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.DB.Ping(r.Context()); err != nil {
		a.logger.WarnContext(r.Context(), "readiness check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
