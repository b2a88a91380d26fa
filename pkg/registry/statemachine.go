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

import "github.com/carverauto/fleetstream/pkg/models"

// allowedTransitions is the device lifecycle state machine. Retired is
// terminal: it has no outgoing edges.
var allowedTransitions = map[models.DeviceStatus][]models.DeviceStatus{
	models.StatusInStock:     {models.StatusReserved, models.StatusDeployed, models.StatusRetired},
	models.StatusReserved:    {models.StatusInStock, models.StatusDeployed, models.StatusRetired},
	models.StatusDeployed:    {models.StatusMaintenance, models.StatusInStock, models.StatusRetired},
	models.StatusMaintenance: {models.StatusInStock, models.StatusDeployed, models.StatusRetired},
	models.StatusRetired:     {},
}

// CanTransition reports whether the lifecycle state machine allows moving a
// device from one status to another.
func CanTransition(from, to models.DeviceStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// transitionAction names the audit trail action for a transition.
func transitionAction(from, to models.DeviceStatus) string {
	switch to {
	case models.StatusReserved:
		return "reserve"
	case models.StatusDeployed:
		return "deploy"
	case models.StatusMaintenance:
		return "maintenance"
	case models.StatusRetired:
		return "retire"
	case models.StatusInStock:
		if from == models.StatusDeployed {
			return "recall"
		}

		return "return_to_stock"
	default:
		return "status_change"
	}
}
