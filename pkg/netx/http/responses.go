// Package http carries the fiber-facing helpers shared by every handler:
// uniform success/error envelopes, body decoding+validation, and
// middleware, mirroring the teacher's common/net/http package.
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kestrelhq/nlsql/pkg"
)

// ResponseError is the JSON envelope returned for any handled error.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r ResponseError) Error() string { return r.Message }

// OK writes a 200 JSON body.
func OK(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}

// Created writes a 201 JSON body.
func Created(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusCreated).JSON(payload)
}

// NoContent writes an empty 204.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func respondErr(c *fiber.Ctx, status int, code, title, message string) error {
	return c.Status(status).JSON(ResponseError{Code: code, Title: title, Message: message})
}

func BadRequest(c *fiber.Ctx, err error) error {
	var v pkg.ValidationError
	if errors.As(err, &v) {
		return respondErr(c, fiber.StatusBadRequest, v.Code, v.Title, v.Message)
	}

	return respondErr(c, fiber.StatusBadRequest, "", "Bad Request", err.Error())
}

func NotFound(c *fiber.Ctx, code, title, message string) error {
	return respondErr(c, fiber.StatusNotFound, code, title, message)
}

func Conflict(c *fiber.Ctx, code, title, message string) error {
	return respondErr(c, fiber.StatusConflict, code, title, message)
}

func UnprocessableEntity(c *fiber.Ctx, code, title, message string) error {
	return respondErr(c, fiber.StatusUnprocessableEntity, code, title, message)
}

func Unauthorized(c *fiber.Ctx, code, title, message string) error {
	return respondErr(c, fiber.StatusUnauthorized, code, title, message)
}

func Forbidden(c *fiber.Ctx, code, title, message string) error {
	return respondErr(c, fiber.StatusForbidden, code, title, message)
}

func InternalServerError(c *fiber.Ctx, code, title, message string) error {
	return respondErr(c, fiber.StatusInternalServerError, code, title, message)
}

// WithError maps a typed application error to the matching HTTP response.
func WithError(c *fiber.Ctx, err error) error {
	var notFound pkg.EntityNotFoundError
	if errors.As(err, &notFound) {
		return NotFound(c, notFound.Code, notFound.Title, notFound.Message)
	}

	var conflict pkg.EntityConflictError
	if errors.As(err, &conflict) {
		return Conflict(c, conflict.Code, conflict.Title, conflict.Message)
	}

	var validation pkg.ValidationError
	if errors.As(err, &validation) {
		return BadRequest(c, validation)
	}

	var unprocessable pkg.UnprocessableOperationError
	if errors.As(err, &unprocessable) {
		return UnprocessableEntity(c, unprocessable.Code, unprocessable.Title, unprocessable.Message)
	}

	var unauthorized pkg.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return Unauthorized(c, unauthorized.Code, unauthorized.Title, unauthorized.Message)
	}

	var forbidden pkg.ForbiddenError
	if errors.As(err, &forbidden) {
		return Forbidden(c, forbidden.Code, forbidden.Title, forbidden.Message)
	}

	var respErr ResponseError
	if errors.As(err, &respErr) {
		return c.Status(fiber.StatusBadRequest).JSON(respErr)
	}

	var internal pkg.InternalServerError
	if errors.As(pkg.ValidateInternalError(err, ""), &internal) {
		return InternalServerError(c, internal.Code, internal.Title, internal.Message)
	}

	return InternalServerError(c, "", "Internal Server Error", "unexpected error")
}
