package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// UserMessage renders err as text for the reader.
func UserMessage(err error) string {
	var (
		be *errors.BoundaryError
		nf *errors.NotFoundError
		ex *errors.ExternalError
		ve *errors.ValidationError
	)
	switch {
	case errors.As(err, &be):
		if be.Edge == errors.Start {
			return "You are at the beginning of the Bible."
		}
		return "You have reached the end of the Bible."
	case errors.As(err, &nf):
		switch nf.Resource {
		case "book":
			return fmt.Sprintf("Book %q not found.", nf.Query)
		case "reference":
			return fmt.Sprintf("No results for %q. Try \"Book Chapter\" or a keyword.", nf.Query)
		}
		return "Not found."
	case errors.As(err, &ex):
		switch ex.Capability {
		case "illustration":
			return "The illustrator is busy. Please try again."
		case "search":
			return "Search is unavailable right now."
		case "speech":
			return "Narration is unavailable."
		case "storage":
			return "Could not save. Please try again."
		}
		return "A service is unavailable right now."
	case errors.As(err, &ve):
		msg := strings.TrimSuffix(ve.Message, ".")
		if msg == "" {
			return "Invalid input."
		}
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	}
	return "Something went wrong."
}

// errorStatus maps an error to its HTTP status and API error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrStartOfCorpus), errors.Is(err, errors.ErrEndOfCorpus):
		return http.StatusConflict, "BOUNDARY"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrExternal):
		return http.StatusBadGateway, "EXTERNAL_FAILURE"
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func respondErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	respondError(w, status, code, UserMessage(err))
}
