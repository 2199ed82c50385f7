// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/votany/internal/middleware"
	"codeberg.org/oliverandrich/votany/internal/services/account"
)

// RegisterRequest is the body of POST /api/user/register.
type RegisterRequest struct {
	ScreenName   string `json:"screenName"`
	EmailAddress string `json:"emailAddress"`
	Password     string `json:"password"`
	Confirm      string `json:"confirm"`
}

// ResetRequest is the body of POST /api/user/requestPasswordReset.
type ResetRequest struct {
	EmailAddress string `json:"emailAddress"`
}

// ChangePasswordRequest is the body of POST /api/user/changePassword/:authenticateId.
type ChangePasswordRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

// LoginRequest is the body of POST /api/user/login.
type LoginRequest struct {
	ScreenName string `json:"screenName"`
	Password   string `json:"password"`
}

// TestLoginResponse confirms who the bearer token belongs to.
type TestLoginResponse struct {
	Message    string `json:"message"`
	ScreenName string `json:"screenName"`
}

func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	_, err := h.accounts.Register(c.Request().Context(), account.RegisterParams{
		ScreenName:      req.ScreenName,
		Email:           req.EmailAddress,
		Password:        req.Password,
		ConfirmPassword: req.Confirm,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "An account verification email has been sent. Check your email.",
	})
}

func (h *Handlers) Verify(c echo.Context) error {
	if _, err := h.accounts.Verify(c.Request().Context(), c.Param("verifyId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "Your account is now verified. You may now log in.",
	})
}

func (h *Handlers) RequestPasswordReset(c echo.Context) error {
	var req ResetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.RequestPasswordReset(c.Request().Context(), req.EmailAddress); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "Password reset request made. Check your email.",
	})
}

func (h *Handlers) AuthenticatePasswordReset(c echo.Context) error {
	if err := h.accounts.AuthenticateReset(c.Request().Context(), c.Param("authenticateId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "Your password reset request has been authenticated.",
	})
}

func (h *Handlers) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.accounts.ChangePassword(c.Request().Context(), c.Param("authenticateId"), req.Password, req.Confirm)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "Your password has been changed.",
	})
}

func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.Request().Context(), req.ScreenName, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// TestLogin needs RequireAuth.
func (h *Handlers) TestLogin(c echo.Context) error {
	name := middleware.ScreenName(c)
	return c.JSON(http.StatusOK, TestLoginResponse{
		Message:    fmt.Sprintf("You are logged in as %s.", name),
		ScreenName: name,
	})
}

func (h *Handlers) Profile(c echo.Context) error {
	profile, err := h.polls.Profile(c.Request().Context(), c.Param("screenName"), middleware.VoterIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Me needs RequireAuth.
func (h *Handlers) Me(c echo.Context) error {
	name := middleware.ScreenName(c)
	profile, err := h.polls.Profile(c.Request().Context(), name, name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}
