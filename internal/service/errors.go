package service

import "errors"

// Domain errors returned by the services. Handlers map them to response codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated")

	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrExamUpcoming     = errors.New("exam has not started yet")
	ErrExamExpired      = errors.New("exam window has closed")
	ErrNoQuestions      = errors.New("exam has no questions")

	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptNotStarted = errors.New("attempt not started")
	ErrAttemptFinished   = errors.New("attempt already finished")
	ErrAttemptTimeUp     = errors.New("attempt time limit has passed")

	ErrQuestionNotFound = errors.New("question not found")
	ErrCorrectOption    = errors.New("correct option is not one of the options")
	ErrQuestionOrder    = errors.New("order must list every question of the exam exactly once")
)
