// Package common — errors.go определяет пользовательские ошибки,
// общие для всех модулей сервиса. По ним обработчики различают типы
// проблем и отвечают оператору понятным текстом.
package common

import "errors"

// Ошибки кошелька (монеты)
var (
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
)

// Ошибки премиум-функций
var (
	// ErrUnknownFeature — такой премиум-функции не существует
	ErrUnknownFeature = errors.New("неизвестная премиум-функция")
)

// Ошибки панели поддержки
var (
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)
