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

import (
	"context"
	"fmt"

	"github.com/poiesic/embedkit/dataset"
)

// Finetuner is implemented by functions that can be fine-tuned on a QA dataset.
type Finetuner interface {
	Finetune(ctx context.Context, ds *dataset.QADataset) error
}

// CustomEvaluator is implemented by functions with their own evaluation
// routine in place of the generic hit-rate harness.
type CustomEvaluator interface {
	EvaluateCustom(ctx context.Context, ds *dataset.QADataset, path string) (any, error)
}

// Finetune fine-tunes f on ds, or returns ErrNotSupported.
func Finetune(ctx context.Context, f Function, ds *dataset.QADataset) error {
	ft, ok := f.(Finetuner)
	if !ok {
		return fmt.Errorf("finetune %s: %w", f.Name(), ErrNotSupported)
	}
	return ft.Finetune(ctx, ds)
}

// EvaluateCustom runs f's own evaluation, or returns ErrNotSupported.
func EvaluateCustom(ctx context.Context, f Function, ds *dataset.QADataset, path string) (any, error) {
	ev, ok := f.(CustomEvaluator)
	if !ok {
		return nil, fmt.Errorf("evaluate %s: %w", f.Name(), ErrNotSupported)
	}
	return ev.EvaluateCustom(ctx, ds, path)
}
