// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"regexp"
	"unicode/utf8"
)

var (
	capitalLetters = regexp.MustCompile(`[A-Z]`)
	numbers        = regexp.MustCompile(`[0-9]`)
	symbols        = regexp.MustCompile("[$-/:-?{-~!\"^_`\\[\\]]")
	emailAddresses = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)
)

// ValidationError represents a single credential validation error.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors wraps multiple validation errors.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return e.Errors[0].Message
}

// Messages returns all error messages.
func (e *ValidationErrors) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Message
	}
	return messages
}

// Has reports whether a violation with the given code was found.
func (e *ValidationErrors) Has(code string) bool {
	for _, err := range e.Errors {
		if err.Code == code {
			return true
		}
	}
	return false
}

// ValidateScreenName checks that a screen name is 6 to 20 characters long
// and free of symbols.
func ValidateScreenName(screenName string) []ValidationError {
	if screenName == "" {
		return []ValidationError{{Code: "screen_name_required", Message: "Please enter a screen name."}}
	}

	var errs []ValidationError
	if n := utf8.RuneCountInString(screenName); n < 6 || n > 20 {
		errs = append(errs, ValidationError{Code: "screen_name_length", Message: "Screen names must be between 6 and 20."})
	}
	if symbols.MatchString(screenName) {
		errs = append(errs, ValidationError{Code: "screen_name_symbols", Message: "Screen names may not contain symbols."})
	}
	return errs
}

// ValidateEmail checks the shape of an email address.
func ValidateEmail(email string) []ValidationError {
	if email == "" {
		return []ValidationError{{Code: "email_required", Message: "Please enter an email address."}}
	}
	if !emailAddresses.MatchString(email) {
		return []ValidationError{{Code: "email_invalid", Message: "Please enter a valid email address."}}
	}
	return nil
}

// ValidatePassword checks a new password against its confirmation and the
// length and character class rules. Every broken rule is reported.
func ValidatePassword(password, confirm string) []ValidationError {
	if password == "" {
		return []ValidationError{{Code: "password_required", Message: "Please enter a password."}}
	}

	var errs []ValidationError
	if password != confirm {
		errs = append(errs, ValidationError{Code: "password_mismatch", Message: "The passwords do not match."})
	}
	if n := utf8.RuneCountInString(password); n < 8 || n > 32 {
		errs = append(errs, ValidationError{Code: "password_length", Message: "Passwords must be between 8 and 32 characters in length."})
	}
	if !capitalLetters.MatchString(password) {
		errs = append(errs, ValidationError{Code: "password_capital", Message: "Passwords must contain at least one capital letter."})
	}
	if !numbers.MatchString(password) {
		errs = append(errs, ValidationError{Code: "password_number", Message: "Passwords must contain at least one number."})
	}
	if !symbols.MatchString(password) {
		errs = append(errs, ValidationError{Code: "password_symbol", Message: "Passwords must contain at least one symbol."})
	}
	return errs
}

// ValidateRegistration runs all credential checks and returns nil when
// everything passes.
func ValidateRegistration(screenName, email, password, confirm string) *ValidationErrors {
	var errs []ValidationError
	errs = append(errs, ValidateScreenName(screenName)...)
	errs = append(errs, ValidateEmail(email)...)
	errs = append(errs, ValidatePassword(password, confirm)...)
	if len(errs) == 0 {
		return nil
	}
	return &ValidationErrors{Errors: errs}
}

// ValidateNewPassword is ValidateRegistration for a password change.
func ValidateNewPassword(password, confirm string) *ValidationErrors {
	if errs := ValidatePassword(password, confirm); len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}
