package vk

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth: токен невалиден или протух (VK error_code 5).
	// Другой стратегией это не лечится.
	ErrAuth = errors.New("vk: authorization failed")

	ErrEmptyReference = errors.New("vk: empty community reference")

	errNotCommunity = errors.New("resolved object is not a community")
	errLiteralOwner = errors.New("wall answered for literal owner but returned no owner id")
)

// AuthError прерывает резолв целиком.
type AuthError struct {
	Reference string
	Strategy  string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("vk auth failed while resolving %q (%s): %v", e.Reference, e.Strategy, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError: все стратегии отработали мимо. Вызывающий обычно просто пропускает сообщество.
type NotFoundError struct {
	Reference string
	Attempts  []error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vk community %q not found", e.Reference)
}

func (e *NotFoundError) Unwrap() []error { return e.Attempts }
