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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// JobMUS and DocumentMUS are the binary MUS serializers for stored records.
// Fields are written in declaration order; timestamps are Unix microseconds
// with zero standing for an unset time.
var (
	JobMUS      = jobMUS{}
	DocumentMUS = documentMUS{}
)

type jobMUS struct{}

func (s jobMUS) Marshal(v Job, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ID)
	w.string(string(v.Type))
	w.string(v.Payload.DocumentID)
	w.string(v.Payload.RawBytesRef)
	w.string(v.Payload.FileName)
	w.string(v.Payload.MimeType)
	w.string(v.Payload.OwnerID)
	w.string(string(v.Status))
	w.int(v.Attempts)
	w.time(v.CreatedAt)
	w.time(v.UpdatedAt)
	w.timePtr(v.StartedAt)
	w.timePtr(v.CompletedAt)
	w.string(v.Error)
	return w.n
}

func (s jobMUS) Unmarshal(bs []byte) (v Job, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.string()
	v.Type = JobType(r.string())
	v.Payload.DocumentID = r.string()
	v.Payload.RawBytesRef = r.string()
	v.Payload.FileName = r.string()
	v.Payload.MimeType = r.string()
	v.Payload.OwnerID = r.string()
	v.Status = JobStatus(r.string())
	v.Attempts = r.int()
	v.CreatedAt = r.time()
	v.UpdatedAt = r.time()
	v.StartedAt = r.timePtr()
	v.CompletedAt = r.timePtr()
	v.Error = r.string()
	return v, r.n, r.err
}

func (s jobMUS) Size(v Job) (size int) {
	size += ord.String.Size(v.ID)
	size += ord.String.Size(string(v.Type))
	size += ord.String.Size(v.Payload.DocumentID)
	size += ord.String.Size(v.Payload.RawBytesRef)
	size += ord.String.Size(v.Payload.FileName)
	size += ord.String.Size(v.Payload.MimeType)
	size += ord.String.Size(v.Payload.OwnerID)
	size += ord.String.Size(string(v.Status))
	size += varint.Int.Size(v.Attempts)
	size += timeSize(v.CreatedAt)
	size += timeSize(v.UpdatedAt)
	size += timePtrSize(v.StartedAt)
	size += timePtrSize(v.CompletedAt)
	size += ord.String.Size(v.Error)
	return size
}

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ID)
	w.string(v.OwnerID)
	w.string(v.FileName)
	w.int64(v.FileSize)
	w.string(v.MimeType)
	w.string(v.BlobRef)
	w.string(string(v.ProcessingStatus))
	w.int(v.ChunkCount)
	w.string(v.ErrorMessage)
	w.string(v.JobID)
	w.time(v.CreatedAt)
	w.time(v.UpdatedAt)
	w.timePtr(v.StartedAt)
	w.timePtr(v.CompletedAt)
	return w.n
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.string()
	v.OwnerID = r.string()
	v.FileName = r.string()
	v.FileSize = r.int64()
	v.MimeType = r.string()
	v.BlobRef = r.string()
	v.ProcessingStatus = ProcessingStatus(r.string())
	v.ChunkCount = r.int()
	v.ErrorMessage = r.string()
	v.JobID = r.string()
	v.CreatedAt = r.time()
	v.UpdatedAt = r.time()
	v.StartedAt = r.timePtr()
	v.CompletedAt = r.timePtr()
	return v, r.n, r.err
}

func (s documentMUS) Size(v Document) (size int) {
	size += ord.String.Size(v.ID)
	size += ord.String.Size(v.OwnerID)
	size += ord.String.Size(v.FileName)
	size += varint.Int64.Size(v.FileSize)
	size += ord.String.Size(v.MimeType)
	size += ord.String.Size(v.BlobRef)
	size += ord.String.Size(string(v.ProcessingStatus))
	size += varint.Int.Size(v.ChunkCount)
	size += ord.String.Size(v.ErrorMessage)
	size += ord.String.Size(v.JobID)
	size += timeSize(v.CreatedAt)
	size += timeSize(v.UpdatedAt)
	size += timePtrSize(v.StartedAt)
	size += timePtrSize(v.CompletedAt)
	return size
}

// musWriter appends fields to a pre-sized buffer.
type musWriter struct {
	bs []byte
	n  int
}

func (w *musWriter) string(v string)  { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *musWriter) int(v int)        { w.n += varint.Int.Marshal(v, w.bs[w.n:]) }
func (w *musWriter) int64(v int64)    { w.n += varint.Int64.Marshal(v, w.bs[w.n:]) }
func (w *musWriter) time(v time.Time) { w.int64(micros(v)) }

func (w *musWriter) timePtr(v *time.Time) {
	if v == nil {
		w.int64(0)
		return
	}
	w.time(*v)
}

// musReader reads fields in order and keeps the first error.
type musReader struct {
	bs  []byte
	n   int
	err error
}

func (r *musReader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) time() time.Time {
	us := r.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (r *musReader) timePtr() *time.Time {
	t := r.time()
	if t.IsZero() {
		return nil
	}
	return &t
}

func micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func timeSize(t time.Time) int { return varint.Int64.Size(micros(t)) }

func timePtrSize(t *time.Time) int {
	if t == nil {
		return varint.Int64.Size(0)
	}
	return timeSize(*t)
}
