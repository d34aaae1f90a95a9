package types

// SubscriptionStatus is the lifecycle classification derived from end_date.
// It is computed on read and never stored.
type SubscriptionStatus string

const (
	SubscriptionStatusActive       SubscriptionStatus = "active"
	SubscriptionStatusExpiringSoon SubscriptionStatus = "expiring_soon"
	SubscriptionStatusExpired      SubscriptionStatus = "expired"
)

// Device is free text; these are the values offered by the order form.
type Device string

const (
	DeviceSmartTV    Device = "Smart TV"
	DeviceFirestick  Device = "Firestick"
	DeviceSmartphone Device = "Smartphone"
	DeviceMagBox     Device = "Mag Box"
)

var KnownDevices = []Device{DeviceSmartTV, DeviceFirestick, DeviceSmartphone, DeviceMagBox}

// PlanMonthsOptions are the plan durations sold over the counter. Imports may
// carry any positive number of months.
var PlanMonthsOptions = []int{1, 3, 6, 12}
