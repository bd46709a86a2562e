package recon

import (
	"encoding/json"
	"errors"
	"net/http"

	"Recon340B/api"
	"Recon340B/api/constants"
	"Recon340B/internal/checksum"
	"Recon340B/internal/dataset"
	"Recon340B/internal/library"
	"Recon340B/internal/logger"
	"Recon340B/internal/program"
	"Recon340B/internal/screens"

	"go.uber.org/zap"
)

// badInput are the failures caused by the uploaded data or request; their
// messages name the offending column or dataset and go back to the caller.
var badInput = []error{
	dataset.ErrColumnNotFound,
	dataset.ErrKeyColumnMissing,
	dataset.ErrMalformedInput,
	dataset.ErrUnsupportedFormat,
	dataset.ErrKeyKindMismatch,
	dataset.ErrInvalidJoinSpec,
	dataset.ErrInvalidRuleSet,
	dataset.ErrNotNumeric,
	dataset.ErrSheetNotFound,
	screens.ErrMissingInput,
	library.ErrUnknownField,
	library.ErrUnknownCategory,
	program.ErrInvalidChange,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, screens.ErrUnknownScreen),
		errors.Is(err, library.ErrUnknownLog),
		errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checksum.ErrMismatch):
		return http.StatusConflict
	}
	for _, target := range badInput {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.L().Error("request failed", zap.Error(err))
		api.RespondWithError(w, status, constants.ErrScreenFailed)
		return
	}
	api.RespondWithError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
