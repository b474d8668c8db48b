package handler

import "github.com/labstack/echo/v4"

// apiSuccess writes the standard success envelope used by every route.
func apiSuccess(c echo.Context, status int, message string, data interface{}) error {
	response := echo.Map{
		"success": true,
		"message": message,
	}
	if data != nil {
		response["data"] = data
	}
	return c.JSON(status, response)
}

// apiError writes the standard failure envelope.
func apiError(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{
		"success": false,
		"message": message,
	})
}
