// Package ocr abstracts slip-image extraction for paper-assisted intake.
// Extraction internals are out of scope for this service; the interface
// exists so a branch scanner integration can feed the same intake path.
package ocr

import (
	"context"
	"errors"

	"slipdesk/internal/slip/models"
)

var ErrUnreadable = errors.New("slip image unreadable")

// Extractor turns a scanned slip image into a draft payload. Fields the
// extractor cannot read are left zero; the teller confirms and completes the
// draft before intake validation runs.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (models.Payload, error)
}

// Disabled is the default extractor in deployments without a scanner feed.
type Disabled struct{}

func (Disabled) Extract(context.Context, []byte) (models.Payload, error) {
	return models.Payload{}, errors.New("ocr extraction not configured")
}
