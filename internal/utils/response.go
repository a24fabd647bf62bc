package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope of every JSON body the API returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// OK sends a 200 response with optional metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	if message == "" {
		message = "success"
	}
	return c.Status(fiber.StatusOK).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Meta:    meta,
	})
}

// SendSuccess sends a 200 response without metadata.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return OK(c, data, message, nil)
}

// SendError sends an untagged error response.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, "", message, nil)
}

// SendErrorCode sends an error response tagged with a machine readable code.
func SendErrorCode(c *fiber.Ctx, status int, code, message string) error {
	return Fail(c, status, code, message, nil)
}

// Fail sends an error response; details is typically a field to problem map.
func Fail(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Code:    code,
		Details: details,
	})
}
