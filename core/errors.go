// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every failure surfaced by the pipeline wraps exactly one
// of these so callers can branch with errors.Is.
var (
	// ErrValidation indicates unsupported, malformed, empty or oversized input.
	ErrValidation = errors.New("validation failed")

	// ErrExternalService indicates a failure of the embedding provider,
	// the vector store, the job queue or the document store.
	ErrExternalService = errors.New("external service failure")

	// ErrNotFound indicates a missing job or document.
	ErrNotFound = errors.New("not found")

	// ErrDelivery indicates a notification could not reach a connection.
	ErrDelivery = errors.New("delivery failed")
)

// Specific validation failures.
var (
	// ErrInvalidTransition indicates a job status update that would regress.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnsupportedFormat indicates a mime type with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrLegacyDocFormat indicates a legacy binary Word document.
	ErrLegacyDocFormat = errors.New("legacy .doc files are not supported")

	// ErrTextTooShort indicates the extracted text is below the minimum length.
	ErrTextTooShort = errors.New("extracted text is too short")

	// ErrNoChunks indicates chunking produced nothing worth embedding.
	ErrNoChunks = errors.New("no chunks produced")

	// ErrEmptyDocument indicates a zero-byte upload.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrDocumentTooLarge indicates an upload above the configured size limit.
	ErrDocumentTooLarge = errors.New("document is too large")
)

// ValidationError wraps a validation failure with a human-readable detail.
func ValidationError(cause error, detail string) error {
	if detail == "" {
		return fmt.Errorf("%w: %w", ErrValidation, cause)
	}
	return fmt.Errorf("%w: %w: %s", ErrValidation, cause, detail)
}

// ExternalServiceError wraps a dependency failure with the name of the service.
func ExternalServiceError(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalService, service, err)
}

// NotFoundError reports a missing entity of the given kind.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// DeliveryError reports a failed notification delivery.
func DeliveryError(ownerID string, err error) error {
	return fmt.Errorf("%w: owner %q: %w", ErrDelivery, ownerID, err)
}

// LegacyDocError is returned when a legacy .doc upload reaches extraction.
func LegacyDocError() error {
	return ValidationError(ErrLegacyDocFormat, "convert the file to .docx or PDF and upload it again")
}

// IsRetryable reports whether err is a transient dependency failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// UserMessage returns the text stored on a failed document: the error
// message without its leading category.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, category := range []error{ErrValidation, ErrExternalService, ErrNotFound} {
		if !errors.Is(err, category) {
			continue
		}
		if trimmed, ok := strings.CutPrefix(msg, category.Error()+": "); ok {
			return trimmed
		}
	}
	return msg
}
