package workflow

import (
	stderrors "errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CodeUnknownComponentType = "UNKNOWN_COMPONENT_TYPE"
	CodeNodeNotFound         = "NODE_NOT_FOUND"
	CodeEdgeNotFound         = "EDGE_NOT_FOUND"
	CodeInvalidPort          = "INVALID_PORT"
	CodeIncompatiblePorts    = "INCOMPATIBLE_PORTS"
	CodePortAlreadyConnected = "PORT_ALREADY_CONNECTED"
	CodeDuplicateID          = "DUPLICATE_ID"

	CodeUnknownConfigKey   = "UNKNOWN_CONFIG_KEY"
	CodeConfigTypeMismatch = "CONFIG_TYPE_MISMATCH"
	CodeConfigOutOfRange   = "CONFIG_OUT_OF_RANGE"

	CodeValidationUnavailable = "VALIDATION_UNAVAILABLE"

	CodeCatalogUnavailable    = "CATALOG_UNAVAILABLE"
	CodeComponentTypeNotFound = "COMPONENT_TYPE_NOT_FOUND"

	CodeWorkflowNotFound = "WORKFLOW_NOT_FOUND"
	CodeInvalidWorkflow  = "INVALID_WORKFLOW"
)

var (
	ErrUnknownComponentType = goerrors.New("unknown component type", goerrors.CategoryBadInput).
				WithTextCode(CodeUnknownComponentType)
	ErrNodeNotFound = goerrors.New("node not found", goerrors.CategoryBadInput).
			WithTextCode(CodeNodeNotFound)
	ErrEdgeNotFound = goerrors.New("edge not found", goerrors.CategoryBadInput).
			WithTextCode(CodeEdgeNotFound)
	ErrInvalidPort = goerrors.New("invalid port", goerrors.CategoryBadInput).
			WithTextCode(CodeInvalidPort)
	ErrIncompatiblePorts = goerrors.New("incompatible ports", goerrors.CategoryBadInput).
				WithTextCode(CodeIncompatiblePorts)
	ErrPortAlreadyConnected = goerrors.New("input port already connected", goerrors.CategoryConflict).
				WithTextCode(CodePortAlreadyConnected)
	ErrDuplicateID = goerrors.New("duplicate id", goerrors.CategoryConflict).
			WithTextCode(CodeDuplicateID)

	ErrUnknownConfigKey = goerrors.New("unknown config key", goerrors.CategoryValidation).
				WithTextCode(CodeUnknownConfigKey)
	ErrConfigTypeMismatch = goerrors.New("config value has the wrong kind", goerrors.CategoryValidation).
				WithTextCode(CodeConfigTypeMismatch)
	ErrConfigOutOfRange = goerrors.New("config value out of range", goerrors.CategoryValidation).
				WithTextCode(CodeConfigOutOfRange)

	ErrValidationUnavailable = goerrors.New("validation unavailable", goerrors.CategoryExternal).
					WithTextCode(CodeValidationUnavailable)

	ErrCatalogUnavailable = goerrors.New("component catalog unavailable", goerrors.CategoryExternal).
				WithTextCode(CodeCatalogUnavailable)
	ErrComponentTypeNotFound = goerrors.New("component type not found", goerrors.CategoryBadInput).
					WithTextCode(CodeComponentTypeNotFound)

	ErrWorkflowNotFound = goerrors.New("workflow not found", goerrors.CategoryBadInput).
				WithTextCode(CodeWorkflowNotFound)
	ErrInvalidWorkflow = goerrors.New("invalid workflow", goerrors.CategoryBadInput).
				WithTextCode(CodeInvalidWorkflow)
)

// Class groups error codes the way callers react to them.
type Class string

const (
	ClassStructural Class = "structural"
	ClassConfig     Class = "config"
	ClassValidation Class = "validation"
	ClassCatalog    Class = "catalog"
	ClassPersist    Class = "persistence"
	ClassUnknown    Class = ""
)

// ClassOf returns the class a code belongs to.
func ClassOf(code string) Class {
	switch code {
	case CodeUnknownComponentType, CodeNodeNotFound, CodeEdgeNotFound, CodeInvalidPort,
		CodeIncompatiblePorts, CodePortAlreadyConnected, CodeDuplicateID:
		return ClassStructural
	case CodeUnknownConfigKey, CodeConfigTypeMismatch, CodeConfigOutOfRange:
		return ClassConfig
	case CodeValidationUnavailable:
		return ClassValidation
	case CodeCatalogUnavailable, CodeComponentTypeNotFound:
		return ClassCatalog
	case CodeWorkflowNotFound, CodeInvalidWorkflow:
		return ClassPersist
	}
	return ClassUnknown
}

// Errorf clones base with a specific message, an optional source error
// and metadata. The clone keeps base's text code.
func Errorf(base *goerrors.Error, message string, source error, metadata map[string]any) *goerrors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// Code returns the text code carried by err, or "".
func Code(err error) string {
	var ge *goerrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return err != nil && Code(err) == code
}
