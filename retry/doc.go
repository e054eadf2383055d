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

// Package retry retries failing calls with exponential backoff.
//
// A Policy with MaxRetries N allows N+1 attempts. The wait after attempt k is
// BaseDelay * 2^(k-1), optionally jittered and capped:
//
//	embed := retry.Wrap(retry.DefaultPolicy(), generator.GenerateEmbeddings)
//	vectors, err := embed(ctx, texts)
//	if errors.Is(err, retry.ErrRetriesExhausted) {
//	    // every attempt failed; errors.Unwrap(err) is the last cause
//	}
package retry
