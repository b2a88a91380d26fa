/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import "errors"

var (

	// Client errors, surfaced synchronously to the caller.

	ErrNotFound          = errors.New("device not found")
	ErrDuplicateSerial   = errors.New("serial number already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrLocationRequired  = errors.New("location is required when deploying")
	ErrNameRequired      = errors.New("device name is required")
	ErrSerialRequired    = errors.New("serial number is required")
)
