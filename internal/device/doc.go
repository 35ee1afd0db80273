// Package device defines the radio link abstraction used by the bridge engine:
// the fire-and-notify Transport contract, the LinkEvent notifications it delivers,
// structured connection errors and UUID helpers.
//
// The go-ble backed implementation lives in the go-ble subpackage.
package device
