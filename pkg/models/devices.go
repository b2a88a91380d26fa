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

// Package models defines the shared data types for FleetStream.
package models

import "time"

// DeviceStatus is the closed set of lifecycle states a device can be in.
type DeviceStatus string

const (
	StatusInStock     DeviceStatus = "in_stock"
	StatusReserved    DeviceStatus = "reserved"
	StatusDeployed    DeviceStatus = "deployed"
	StatusMaintenance DeviceStatus = "maintenance"
	StatusRetired     DeviceStatus = "retired"
)

// Valid reports whether s is a member of the closed status set.
func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusInStock, StatusReserved, StatusDeployed, StatusMaintenance, StatusRetired:
		return true
	default:
		return false
	}
}

// DeviceType is the canonical device category.
type DeviceType string

const (
	TypeIoTSensor   DeviceType = "iot_sensor"
	TypeIoTGateway  DeviceType = "iot_gateway"
	TypeIoTActuator DeviceType = "iot_actuator"
	TypeComputer    DeviceType = "computer"
	TypeServer      DeviceType = "server"
	TypeEdgeDevice  DeviceType = "edge_device"
	TypeGPUNode     DeviceType = "gpu_node"
	TypeOther       DeviceType = "other"
)

// legacy type aliases still accepted on input
var legacyTypeAliases = map[string]DeviceType{
	"sensor":     TypeIoTSensor,
	"gateway":    TypeIoTGateway,
	"actuator":   TypeIoTActuator,
	"controller": TypeComputer,
}

// NormalizeDeviceType maps legacy aliases onto the canonical categories.
// Unrecognized values fall back to TypeOther.
func NormalizeDeviceType(value string) DeviceType {
	if canonical, ok := legacyTypeAliases[value]; ok {
		return canonical
	}

	switch t := DeviceType(value); t {
	case TypeIoTSensor, TypeIoTGateway, TypeIoTActuator,
		TypeComputer, TypeServer, TypeEdgeDevice, TypeGPUNode, TypeOther:
		return t
	default:
		return TypeOther
	}
}

// IsIoT reports whether the type belongs to the IoT category.
func (t DeviceType) IsIoT() bool {
	return t == TypeIoTSensor || t == TypeIoTGateway || t == TypeIoTActuator
}

// IsSystem reports whether the type belongs to the system/computer category.
func (t DeviceType) IsSystem() bool {
	return t == TypeComputer || t == TypeServer || t == TypeEdgeDevice || t == TypeGPUNode
}

// Device is the authoritative record of a physical device. Status changes go
// through the registry's transition operation only, never by direct edit.
type Device struct {
	ID                  int64        `json:"id"`
	Name                string       `json:"name"`
	Type                DeviceType   `json:"type"`
	SerialNumber        string       `json:"serial_number"`
	Description         string       `json:"description,omitempty"`
	Status              DeviceStatus `json:"status"`
	Location            string       `json:"location,omitempty"`
	Specifications      string       `json:"specifications,omitempty"`
	PurchaseDate        *time.Time   `json:"purchase_date,omitempty"`
	DeployDate          *time.Time   `json:"deploy_date,omitempty"`
	LastMaintenanceDate *time.Time   `json:"last_maintenance_date,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// DeviceLogEntry is one immutable row of the device audit trail, appended
// exactly once per successful status transition.
type DeviceLogEntry struct {
	ID          int64        `json:"id"`
	DeviceID    int64        `json:"device_id"`
	Action      string       `json:"action"`
	OldStatus   DeviceStatus `json:"old_status,omitempty"`
	NewStatus   DeviceStatus `json:"new_status,omitempty"`
	PerformedBy *int64       `json:"performed_by,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
