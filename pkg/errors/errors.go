package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Validation errors reject the whole operation before any mutation is
// applied. Sync errors are recovered locally and never surfaced as a
// failure of the originating action.

type InvalidQuantityError struct {
	Value string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %q: must be a non-negative number", e.Value)
}

type IncompatibleUnitsError struct {
	From string
	To   string
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("no conversion from %s to %s: units belong to different classes", e.From, e.To)
}

type UnknownLocationError struct {
	LocationID string
}

func (e *UnknownLocationError) Error() string {
	return fmt.Sprintf("storage location %q not present in the ledger", e.LocationID)
}

type IncompleteAssignmentError struct {
	RequisitionID string
	Unassigned    []string
}

func (e *IncompleteAssignmentError) Error() string {
	return fmt.Sprintf("requisition %s: %d item(s) have no source bay assigned", e.RequisitionID, len(e.Unassigned))
}

type MaterialMismatchError struct {
	LocationID string
	Want       string
	Have       string
}

func (e *MaterialMismatchError) Error() string {
	if e.Have == "" {
		return fmt.Sprintf("location %s holds no material, expected %s", e.LocationID, e.Want)
	}
	return fmt.Sprintf("location %s holds %s, expected %s", e.LocationID, e.Have, e.Want)
}

type InvalidTransitionError struct {
	Resource string
	From     string
	Event    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s not permitted from status %s", e.Resource, e.Event, e.From)
}

type RemoteSyncError struct {
	Collection string
	RecordID   string
	Err        error
}

func (e *RemoteSyncError) Error() string {
	return fmt.Sprintf("remote sync of %s/%s failed: %v", e.Collection, e.RecordID, e.Err)
}

func (e *RemoteSyncError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a domain error onto the response code the handlers
// should answer with.
func HTTPStatus(err error) int {
	var (
		invalidQty   *InvalidQuantityError
		incompatible *IncompatibleUnitsError
		unknownLoc   *UnknownLocationError
		incomplete   *IncompleteAssignmentError
		invalidTrans *InvalidTransitionError
		mismatch     *MaterialMismatchError
	)
	switch {
	case errors.As(err, &unknownLoc):
		return http.StatusNotFound
	case errors.As(err, &invalidTrans), errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.As(err, &invalidQty), errors.As(err, &incompatible), errors.As(err, &incomplete):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
