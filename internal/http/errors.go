package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"medassist/internal/analysis"
	"medassist/internal/intake"
	"medassist/internal/llm"
	"medassist/internal/normalize"
	"medassist/internal/session"
)

// classifyError maps an analysis error to its HTTP status and envelope.
func classifyError(err error) (int, ErrorResponse) {
	var (
		unsupported *intake.UnsupportedFormatError
		gwErr       *llm.GatewayError
		parseErr    *normalize.ParseError
	)

	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		return fiber.StatusBadRequest, ErrorResponse{
			Code:  "EMPTY_INPUT",
			Error: "Input must not be empty",
		}
	case errors.Is(err, analysis.ErrInputTooLong):
		return fiber.StatusBadRequest, ErrorResponse{
			Code:  "INPUT_TOO_LONG",
			Error: err.Error(),
		}
	case errors.As(err, &unsupported):
		return fiber.StatusUnsupportedMediaType, ErrorResponse{
			Code:    "UNSUPPORTED_FORMAT",
			Error:   unsupported.Error(),
			Details: fiber.Map{"formats": intake.SupportedExtensions()},
		}
	case errors.As(err, &parseErr):
		return fiber.StatusBadGateway, ErrorResponse{
			Code:    "MODEL_RESPONSE_INVALID",
			Error:   parseErr.Kind.Message(),
			Details: ParseErrorDetails{Kind: string(parseErr.Kind), Raw: parseErr.Raw},
		}
	case errors.As(err, &gwErr):
		status := fiber.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = fiber.StatusGatewayTimeout
		}
		return status, ErrorResponse{
			Code:    "MODEL_GATEWAY_FAILED",
			Error:   "The model service is unavailable, please try again later",
			Details: GatewayErrorDetails{Provider: string(gwErr.Provider), Attempts: gwErr.Attempts},
		}
	case errors.Is(err, session.ErrBusy):
		return fiber.StatusConflict, ErrorResponse{
			Code:  "SESSION_BUSY",
			Error: "A request for this session is already in progress",
		}
	case errors.Is(err, intake.ErrUnreadable):
		return fiber.StatusUnprocessableEntity, ErrorResponse{
			Code:  "UNREADABLE_DOCUMENT",
			Error: err.Error(),
		}
	}

	return fiber.StatusInternalServerError, ErrorResponse{
		Code:  "INTERNAL_ERROR",
		Error: "Internal server error",
	}
}

func writeError(c *fiber.Ctx, err error) (int, string, error) {
	status, resp := classifyError(err)
	resp.Success = false
	return status, resp.Code, c.Status(status).JSON(resp)
}

// errorHandler renders framework errors (404, 413 body limit, ...) in the
// same envelope as handler errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	errCode := "INTERNAL_ERROR"
	switch code {
	case fiber.StatusNotFound:
		errCode = "NOT_FOUND"
	case fiber.StatusRequestEntityTooLarge:
		errCode = "PAYLOAD_TOO_LARGE"
	case fiber.StatusMethodNotAllowed:
		errCode = "METHOD_NOT_ALLOWED"
	case fiber.StatusBadRequest:
		errCode = "BAD_REQUEST"
	}

	return c.Status(code).JSON(ErrorResponse{
		Success: false,
		Code:    errCode,
		Error:   msg,
	})
}
