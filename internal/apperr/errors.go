// Package apperr определяет сентинельные ошибки доменного уровня.
// Обработчики сопоставляют их с HTTP-статусами через errors.Is,
// поэтому текст ошибки стабилен и не содержит внутренних деталей.
package apperr

import "errors"

// ErrInvalidCredentials возвращается при неверном логине или пароле.
// Одна и та же ошибка для неизвестной почты и неверного пароля,
// чтобы не допустить перебор учётных записей.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrDuplicateIdentity возвращается при повторной регистрации занятой почты.
var ErrDuplicateIdentity = errors.New("user already exists")

// ErrInvalidOrExpiredToken возвращается для отсутствующих, использованных
// и просроченных refresh- и reset-токенов без различия причин.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

// ErrSignatureVerification возвращается при неверной подписи webhook-запроса.
var ErrSignatureVerification = errors.New("webhook signature verification failed")

// ErrNotFound возвращается, когда пользователь или активная подписка не найдены.
var ErrNotFound = errors.New("not found")

// ErrRemoteProvider возвращается при сбое запроса к платёжному провайдеру.
var ErrRemoteProvider = errors.New("billing provider request failed")
