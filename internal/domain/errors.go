package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrPropertySold       = errors.New("property already sold")
	ErrAlreadySubmitted   = errors.New("you have already submitted interest for this property")
	ErrUnverifiedEmail    = errors.New("please verify your email before logging in")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrTokenInvalid       = errors.New("token is invalid or has expired")
	ErrEmailTaken         = errors.New("email already in use")
	ErrGateway            = errors.New("payment gateway error")
	ErrBadSignature       = errors.New("invalid webhook signature")
)
