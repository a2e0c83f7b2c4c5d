package stubserver

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error is rendered as {"detail": "..."}, the shape clients parse.
type Error struct {
	Code   int    `json:"-"`
	Detail string `json:"detail"`
}

func (e Error) Error() string {
	return e.Detail
}

func NewError(code int, detail string) Error {
	return Error{Code: code, Detail: detail}
}

func ErrNotFound() Error {
	return NewError(fiber.StatusNotFound, "CV not found")
}

func ErrBadRequest(format string, args ...any) Error {
	return NewError(fiber.StatusBadRequest, fmt.Sprintf(format, args...))
}

func ErrUnprocessable(format string, args ...any) Error {
	return NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf(format, args...))
}

// ErrorHandler renders every handler error with a detail field.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, err.Error()))
}
