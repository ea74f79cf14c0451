package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fhirway/fhirway/internal/platform/ferrors"
)

// operationOutcomeFor derives the HTTP status and OperationOutcome body
// for err, per spec §7's "HTTP status is derived" table.
func operationOutcomeFor(err error) (int, *ferrors.OperationOutcome) {
	if he, ok := err.(*echo.HTTPError); ok {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		fe := ferrors.Invalidf("invalid", "%s", msg)
		return he.Code, fe.ToOperationOutcome()
	}

	fe := ferrors.FromError(err)
	return fe.HTTPStatus(), fe.ToOperationOutcome()
}

// writeError renders err as a FHIR OperationOutcome response.
func writeError(c echo.Context, err error) error {
	status, outcome := operationOutcomeFor(err)
	return c.JSON(status, outcome)
}
