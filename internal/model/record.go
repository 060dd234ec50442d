package model

import "time"

// RawItem is one inventory item exactly as a client submitted it.
// Field values are whatever the JSON decoder produced (string, json.Number,
// float64, bool, nil, nested slices and maps).
type RawItem map[string]any

// SystemRecord is one persisted version of a serial-numbered asset.
type SystemRecord struct {
	ID                 int64      `json:"id"`
	SerialNumber       string     `json:"serialnumber"`
	ComputerName       string     `json:"computername"`
	Manufacturer       string     `json:"manufacturer"`
	Model              string     `json:"model"`
	SystemSKU          string     `json:"systemsku"`
	OperatingSystem    string     `json:"operatingsystem"`
	CPU                string     `json:"cpu"`
	Resolution         string     `json:"resolution"`
	GraphicsCard       string     `json:"graphicscard"`
	Touchscreen        bool       `json:"touchscreen"`
	RAMGB              float64    `json:"ram_gb"`
	Disks              string     `json:"disks"`
	DisksGB            float64    `json:"disks_gb"`
	DesignCapacity     int64      `json:"design_capacity"`
	FullChargeCapacity int64      `json:"full_charge_capacity"`
	CycleCount         int64      `json:"cycle_count"`
	BatteryHealth      float64    `json:"battery_health"`
	OutboundStatus     string     `json:"outbound_status"`
	SyncStatus         string     `json:"sync_status"`
	SyncVersion        string     `json:"sync_version"`
	LastSyncTime       *time.Time `json:"last_sync_time"`
	DataSource         string     `json:"data_source"`
	ValidationStatus   string     `json:"validation_status"`
	ValidationMessage  string     `json:"validation_message"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          time.Time  `json:"started_at"`
	LastUpdatedAt      time.Time  `json:"last_updated_at"`
	IsCurrent          bool       `json:"is_current"`
}

// SyncStatus is the sync state reported for one serial number.
type SyncStatus struct {
	SyncStatus   string     `json:"sync_status"`
	SyncVersion  string     `json:"sync_version"`
	LastSyncTime *time.Time `json:"last_sync_time"`
}
