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

import "fmt"

// ValidateJob validates a job before it is enqueued.
//
// Validation rules:
//   - Type must be JobTypeVectorizeDocument
//   - Payload DocumentID, RawBytesRef, FileName and OwnerID must not be empty
//
// NOT validated:
//   - MimeType (unsupported formats fail the job during extraction)
//   - ID (assigned on enqueue when empty)
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrValidation)
	}
	if job.Type != JobTypeVectorizeDocument {
		return fmt.Errorf("%w: unknown job type %q", ErrValidation, job.Type)
	}
	p := job.Payload
	switch {
	case p.DocumentID == "":
		return fmt.Errorf("%w: payload documentId is empty", ErrValidation)
	case p.RawBytesRef == "":
		return fmt.Errorf("%w: payload rawBytesRef is empty", ErrValidation)
	case p.FileName == "":
		return fmt.Errorf("%w: payload filename is empty", ErrValidation)
	case p.OwnerID == "":
		return fmt.Errorf("%w: payload userId is empty", ErrValidation)
	}
	return nil
}

// ValidateUpload checks an upload against the size limit.
// A maxBytes of zero disables the upper bound.
func ValidateUpload(ownerID, fileName string, size, maxBytes int64) error {
	if ownerID == "" {
		return fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if fileName == "" {
		return fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if size <= 0 {
		return ValidationError(ErrEmptyDocument, fileName)
	}
	if maxBytes > 0 && size > maxBytes {
		return ValidationError(ErrDocumentTooLarge, fmt.Sprintf("%s is %d bytes, limit is %d", fileName, size, maxBytes))
	}
	return nil
}
