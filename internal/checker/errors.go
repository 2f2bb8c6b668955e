// Copyright 2025 PackWatch Authors
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

package checker

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is returned when Check receives an empty payload
var ErrEmptyImage = errors.New("image payload is empty")

// ProviderError reports that the upstream model call could not complete:
// network failure, timeout, bad credentials or quota exhaustion. It is never
// retried here; callers own any retry policy.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// FormatError reports that a reply was received but does not satisfy the
// ComplianceReport schema. Raw carries the offending text for diagnosis; no
// partial report is ever synthesized from it.
type FormatError struct {
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed model reply: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
