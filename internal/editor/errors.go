package editor

import "errors"

var (
	// ErrInvalidCamera параметры камеры не задают корректную проекцию
	ErrInvalidCamera = errors.New("invalid camera")
	// ErrColorIndex индекс цвета вне палитры
	ErrColorIndex = errors.New("color index out of palette range")
	// ErrSessionNotFound сессии с таким ID нет
	ErrSessionNotFound = errors.New("session not found")
	// ErrLoopStopped цикл сессии остановлен
	ErrLoopStopped = errors.New("session loop stopped")
	// ErrCommandPanic команда сессии запаниковала
	ErrCommandPanic = errors.New("session command panicked")
	// ErrTooManySessions достигнут предел сессий
	ErrTooManySessions = errors.New("too many sessions")
	// ErrNoSelection выделение не начато
	ErrNoSelection = errors.New("no active selection")
)
