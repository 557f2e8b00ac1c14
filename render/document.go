package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ClampScale keeps a document scale factor in the range the printer accepts.
// Anything outside [0.1, 2.0] falls back to DefaultScale.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) || s < 0.1 || s > 2.0 {
		return DefaultScale
	}
	return s
}

// inspectPDF validates a printed document and returns its page count. A
// printer that hands back something unreadable is a failed backend call.
func inspectPDF(pdf []byte) (int, error) {
	if len(pdf) == 0 {
		return 0, errors.New("empty document")
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}
