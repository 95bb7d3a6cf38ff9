// Package constant holds sentinel business errors shared across use cases,
// mirroring the teacher's common/constant/errors.go numbering scheme.
package constant

import "errors"

var (
	ErrEntityNotFound            = errors.New("0001")
	ErrSessionNotFound           = errors.New("0002")
	ErrRequestNotFound           = errors.New("0003")
	ErrQueryNotFound             = errors.New("0004")
	ErrChartNotFound             = errors.New("0005")
	ErrForbiddenOwnership        = errors.New("0006")
	ErrMissingScope              = errors.New("0007")
	ErrTokenMissing              = errors.New("0008")
	ErrInvalidToken              = errors.New("0009")
	ErrSequenceConflict          = errors.New("0010")
	ErrTerminalRequest           = errors.New("0011")
	ErrUnknownListStrategy       = errors.New("0012")
	ErrMissingIDKey              = errors.New("0013")
	ErrSlotNotFound              = errors.New("0014")
	ErrPackValidation            = errors.New("0015")
	ErrOverlayRead               = errors.New("0016")
	ErrRenderFailed              = errors.New("0017")
	ErrProviderFailed            = errors.New("0018")
	ErrLLMFailed                 = errors.New("0019")
	ErrWarehouseFailed           = errors.New("0020")
	ErrNoSQLProduced             = errors.New("0021")
	ErrBadRequest                = errors.New("0022")
	ErrUnexpectedFields          = errors.New("0023")
	ErrInternalServer            = errors.New("0024")
)
