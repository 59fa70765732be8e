package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Pipeline failure kinds. Every error leaving the pipeline carries exactly one
// of these markers so callers can render a tagged result.
var (
	ErrInvalidReference     = errors.New("invalid reference")
	ErrRetrieval            = errors.New("retrieval failed")
	ErrCorruptArtifact      = errors.New("corrupt artifact")
	ErrUnknownModel         = errors.New("unknown model")
	ErrModelLoad            = errors.New("model load failed")
	ErrRecognition          = errors.New("recognition failed")
	ErrInternalSegmentation = errors.New("internal segmentation error")
)

// Ambient markers shared by configuration, storage, and tooling code.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind is the stable, machine-readable name of an error marker.
type Kind string

const (
	KindInvalidReference     Kind = "invalid_reference"
	KindRetrieval            Kind = "retrieval"
	KindCorruptArtifact      Kind = "corrupt_artifact"
	KindUnknownModel         Kind = "unknown_model"
	KindModelLoad            Kind = "model_load"
	KindRecognition          Kind = "recognition"
	KindInternalSegmentation Kind = "internal_segmentation"
	KindValidation           Kind = "validation"
	KindConfiguration        Kind = "configuration"
	KindNotFound             Kind = "not_found"
	KindTimeout              Kind = "timeout"
	KindExternalTool         Kind = "external_tool"
	KindInternal             Kind = "internal"
)

var kindOrder = []struct {
	marker error
	kind   Kind
	status int
}{
	{ErrInvalidReference, KindInvalidReference, http.StatusBadRequest},
	{ErrRetrieval, KindRetrieval, http.StatusBadRequest},
	{ErrCorruptArtifact, KindCorruptArtifact, http.StatusBadRequest},
	{ErrUnknownModel, KindUnknownModel, http.StatusBadRequest},
	{ErrModelLoad, KindModelLoad, http.StatusInternalServerError},
	{ErrRecognition, KindRecognition, http.StatusInternalServerError},
	{ErrInternalSegmentation, KindInternalSegmentation, http.StatusInternalServerError},
	{ErrValidation, KindValidation, http.StatusBadRequest},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrConfiguration, KindConfiguration, http.StatusInternalServerError},
	{ErrTimeout, KindTimeout, http.StatusGatewayTimeout},
	{ErrExternalTool, KindExternalTool, http.StatusInternalServerError},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf reports the first pipeline marker found in err's chain. Errors without
// a known marker are reported as KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps err to the status code used by the HTTP API.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.marker) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
