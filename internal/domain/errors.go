package domain

import (
	"errors"
	"fmt"
)

// ErrQueryFailed - NL-SQL ответил success=false. Детали сервера наружу не отдаем.
var ErrQueryFailed = errors.New("query failed")

// ValidationError - ввод оператора отклонен до отправки в сеть.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError - сбой транспорта (соединение, таймаут, открытый предохранитель).
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError - сервис ответил, но не успехом: HTTP не 2xx или success=false в теле.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ParseError - битый текст протокола или литерала.
// Наружу не выходит: декодер гасит его сам и отдает пустые поля.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", truncate(e.Input, 64), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ErrorKind классифицирует ошибку для метрик и HTTP-ответа.
func ErrorKind(err error) string {
	var vErr *ValidationError
	var nErr *NetworkError
	var sErr *ServiceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &nErr):
		return "network"
	case errors.As(err, &sErr):
		return "service"
	default:
		return "internal"
	}
}
