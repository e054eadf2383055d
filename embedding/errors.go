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

package embedding

import "errors"

var (
	// ErrUnsupportedInputType is returned when source input is not a string,
	// a []string or a columnar string array.
	ErrUnsupportedInputType = errors.New("unsupported input type")

	// ErrNotSupported is returned when a function lacks an optional capability.
	ErrNotSupported = errors.New("operation not supported")

	// ErrUnknownFunction is returned when a registry has no constructor for a name.
	ErrUnknownFunction = errors.New("unknown embedding function")

	// ErrDuplicateFunction is returned when a name is registered twice.
	ErrDuplicateFunction = errors.New("embedding function already registered")

	// ErrDimensionMismatch is returned when a generator returns vectors of the
	// wrong size or count.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidColumnConfig is returned by ColumnConfig.Validate.
	ErrInvalidColumnConfig = errors.New("invalid embedding column config")

	// ErrNilGenerator is returned when a TextFunction is built without a generator.
	ErrNilGenerator = errors.New("embedding generator is required")
)
