package commands

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input limits accepted by the task API.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
	MinPasswordLen    = 6
)

var (
	errTitleRequired = errors.New("title required")
	errInvalidEmail  = errors.New("invalid email address")
)

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if strings.TrimSpace(title) == "" {
		return errTitleRequired
	}
	if n > MaxTitleLen {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLen)
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLen)
	}
	return nil
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return errInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}
