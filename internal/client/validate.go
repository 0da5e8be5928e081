package client

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type SignupForm struct {
	FullName        string
	Phone           string
	Email           string
	Password        string
	ConfirmPassword string
}

type LoginForm struct {
	Phone    string
	Password string
}

func (f SignupForm) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(f.FullName) == "" {
		fields["fullName"] = "Full name is required"
	}
	if strings.TrimSpace(f.Phone) == "" {
		fields["phone"] = "Phone number is required"
	}
	if email := strings.TrimSpace(f.Email); email != "" && !emailPattern.MatchString(email) {
		fields["email"] = "Please enter a valid email address"
	}
	switch {
	case len(f.Password) < 6:
		fields["password"] = "Password must be at least 6 characters"
	case len(f.Password) > 72:
		fields["password"] = "Password must be at most 72 bytes"
	}
	if f.Password != f.ConfirmPassword {
		fields["confirmPassword"] = "Passwords do not match"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (f LoginForm) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(f.Phone) == "" {
		fields["phone"] = "Phone number is required"
	}
	if f.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
