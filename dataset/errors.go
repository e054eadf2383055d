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

package dataset

import "errors"

var (
	// ErrInvalidDataset is returned when a dataset breaks an id invariant.
	ErrInvalidDataset = errors.New("invalid QA dataset")

	// ErrDatasetExists is returned by Save in create mode when files exist.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrInvalidSaveMode is returned for unknown save modes.
	ErrInvalidSaveMode = errors.New("invalid save mode")

	// ErrChatModelRequired is returned when Generate is called without a model.
	ErrChatModelRequired = errors.New("chat model is required")

	// ErrInvalidWindow is returned by Contextualize for non-positive sizes.
	ErrInvalidWindow = errors.New("window and stride must be positive")
)
