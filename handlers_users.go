package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

type updatePasswordRequest struct {
	Password    string `json:"password" validate:"required,min=6,pwbytes"`
	NewPassword string `json:"newPassword" validate:"required,min=6,pwbytes"`
}

type updateEmailRequest struct {
	Email    string `json:"email" validate:"required,email"`
	NewEmail string `json:"newEmail" validate:"required,email,max=254"`
}

func (a *App) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.Profile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(user))
}

func (a *App) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in updatePasswordRequest
	if !a.decode(w, r, &in) {
		return
	}
	err := a.auth.UpdatePassword(r.Context(), mux.Vars(r)["id"], in.Password, in.NewPassword, subject(r))
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, message{"Password has been updated."})
}

func (a *App) HandleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var in updateEmailRequest
	if !a.decode(w, r, &in) {
		return
	}
	user, err := a.auth.UpdateEmail(r.Context(), mux.Vars(r)["id"], in.Email, in.NewEmail, subject(r))
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(user))
}

func (a *App) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Deactivate(r.Context(), mux.Vars(r)["id"], subject(r)); err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, message{"Account has been deactivated."})
}
